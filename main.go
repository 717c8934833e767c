package main

import "github.com/Norgate-AV/pcs/cmd"

func main() {
	cmd.Execute()
}
