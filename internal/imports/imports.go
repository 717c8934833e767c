// Package imports decides which import directives a playground source may use.
//
// Everything in the dart: namespace is allowed. Third-party package: imports
// are allowed only when they start with an approved prefix. Anything else,
// including relative and absolute file paths, is rejected.
package imports

import "strings"

const (
	// StandardScheme marks an import from the language's own libraries
	StandardScheme = "dart:"

	// PackageScheme marks an import from a third-party package
	PackageScheme = "package:"
)

// FrameworkPrefixes identify imports that need the UI framework to be provisioned
var FrameworkPrefixes = []string{
	"package:flutter/",
	"package:flutter_test/",
	"package:flutter_web_plugins/",
}

// ApprovedPrefixes lists every package: prefix a playground source may import
var ApprovedPrefixes = append([]string{
	"package:async/",
	"package:characters/",
	"package:collection/",
	"package:http/",
	"package:intl/",
	"package:js/",
	"package:meta/",
	"package:path/",
	"package:vector_math/",
}, FrameworkPrefixes...)

// Parse returns the URIs of all import, export and part directives in
// source, in source order and without duplicates. Conditional import
// alternatives are included. Directives are found wherever they appear, so
// comments or other declarations sharing their line do not hide them.
func Parse(source string) []string {
	var uris []string
	seen := make(map[string]struct{})

	s := &scanner{src: source}
	for {
		tok := s.next()
		if tok.kind == tokenEOF {
			return uris
		}

		if tok.kind != tokenIdent || !isDirective(tok.text) {
			continue
		}

		for _, uri := range s.directiveURIs() {
			uri = strings.TrimSpace(uri)
			if _, ok := seen[uri]; ok {
				continue
			}

			seen[uri] = struct{}{}
			uris = append(uris, uri)
		}
	}
}

// UnsupportedImport returns the first import that the policy rejects.
// The boolean is false when every import is allowed.
func UnsupportedImport(imports []string) (string, bool) {
	for _, uri := range imports {
		if uri == "" {
			continue
		}

		if strings.HasPrefix(uri, StandardScheme) {
			continue
		}

		if strings.HasPrefix(uri, PackageScheme) && isApproved(uri) {
			continue
		}

		return uri, true
	}

	return "", false
}

// UsesRestrictedFramework reports whether any import needs the UI framework
func UsesRestrictedFramework(imports []string) bool {
	for _, uri := range imports {
		if hasAnyPrefix(uri, FrameworkPrefixes) {
			return true
		}
	}

	return false
}

func isApproved(uri string) bool {
	return hasAnyPrefix(uri, ApprovedPrefixes)
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}
