package compiler

// ExitCodes maps toolchain exit codes to their descriptions
var ExitCodes = map[int]string{
	-1:  "Killed or timed out",
	0:   "Success",
	1:   "Compilation errors",
	64:  "Invalid command line usage",
	65:  "Invalid input data",
	66:  "Cannot open input",
	69:  "Service unavailable",
	70:  "Internal compiler error",
	73:  "Cannot create output file",
	74:  "Input/output error",
	254: "Compilation error",
	255: "Uncaught exception",
}

// IsSuccess returns true if the exit code indicates successful compilation
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the error message for a given exit code, or a generic message if unknown
func GetErrorMessage(code int) string {
	if msg, ok := ExitCodes[code]; ok {
		return msg
	}

	return "Unknown error"
}
