package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	source := `
// import 'package:ignored/commented.dart';
import 'dart:html';
import "package:flutter/material.dart" as m;
  export 'package:collection/collection.dart' show ListEquality;
import 'dart:html';
import '../secret.dart';

void main() {}
`

	got := Parse(source)
	assert.Equal(t, []string{
		"dart:html",
		"package:flutter/material.dart",
		"package:collection/collection.dart",
		"../secret.dart",
	}, got)
}

func TestParse_NoImports(t *testing.T) {
	assert.Empty(t, Parse("void main(){}"))
}

func TestParse_Directives(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{
			name:   "after a library directive on the same line",
			source: "library x; import 'package:evil/evil.dart';\nvoid main() {}\n",
			want:   []string{"package:evil/evil.dart"},
		},
		{
			name:   "block comment before the uri",
			source: "import /* c */ '../secret.dart';\n",
			want:   []string{"../secret.dart"},
		},
		{
			name:   "line comment before the uri",
			source: "import // c\n  '../secret.dart';\n",
			want:   []string{"../secret.dart"},
		},
		{
			name:   "nested block comment hides a directive",
			source: "/* outer /* inner */ import 'package:evil/evil.dart'; */\nimport 'dart:math';\n",
			want:   []string{"dart:math"},
		},
		{
			name:   "annotation before the directive",
			source: "@Deprecated('x') import 'package:evil/evil.dart';\n",
			want:   []string{"package:evil/evil.dart"},
		},
		{
			name: "conditional import alternatives",
			source: "import 'dart:html'\n" +
				"    if (dart.library.io) '../io.dart'\n" +
				"    if (dart.library.js == 'true') 'package:js/js.dart' as platform;\n",
			want: []string{"dart:html", "../io.dart", "package:js/js.dart"},
		},
		{
			name:   "part directive",
			source: "part 'src/secret.dart';\n",
			want:   []string{"src/secret.dart"},
		},
		{
			name:   "part of is not a uri",
			source: "part of 'main.dart';\n",
		},
		{
			name:   "raw and triple quoted uris",
			source: "import r'../raw.dart';\nimport '''../triple.dart''';\n",
			want:   []string{"../raw.dart", "../triple.dart"},
		},
		{
			name:   "adjacent string literals",
			source: "import '../' 'split.dart';\n",
			want:   []string{"../split.dart"},
		},
		{
			name:   "missing semicolon does not swallow the next directive",
			source: "import 'dart:math'\nimport '../secret.dart';\n",
			want:   []string{"dart:math", "../secret.dart"},
		},
		{
			name: "keywords inside strings and identifiers",
			source: "void main() {\n" +
				"  var import = 1;\n" +
				"  print('import \"../not.dart\"; ${import}');\n" +
				"  print(\"it's export\");\n" +
				"}\n",
		},
		{
			name:   "directive after code",
			source: "void main() {}\nimport '../late.dart';\n",
			want:   []string{"../late.dart"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.source))
		})
	}
}

func TestParse_RejectsHiddenDirectives(t *testing.T) {
	sources := []string{
		"library x; import 'package:evil/evil.dart';",
		"import /* c */ '../secret.dart';",
		"import // c\n'../secret.dart';",
	}

	for _, source := range sources {
		_, bad := UnsupportedImport(Parse(source))
		assert.True(t, bad, "source %q should be rejected", source)
	}
}

func TestUnsupportedImport(t *testing.T) {
	tests := []struct {
		name    string
		imports []string
		want    string
		wantBad bool
	}{
		{
			name:    "no imports",
			imports: nil,
		},
		{
			name:    "standard library only",
			imports: []string{"dart:html", "dart:async", "dart:math"},
		},
		{
			name:    "approved packages",
			imports: []string{"package:flutter/material.dart", "package:http/http.dart", "dart:core"},
		},
		{
			name:    "empty uri is skipped",
			imports: []string{"", "dart:io"},
		},
		{
			name:    "unapproved package",
			imports: []string{"dart:html", "package:evil/evil.dart"},
			want:    "package:evil/evil.dart",
			wantBad: true,
		},
		{
			name:    "relative file path",
			imports: []string{"foo.dart"},
			want:    "foo.dart",
			wantBad: true,
		},
		{
			name:    "absolute file path",
			imports: []string{"/etc/passwd"},
			want:    "/etc/passwd",
			wantBad: true,
		},
		{
			name:    "other scheme",
			imports: []string{"http://example.com/lib.dart"},
			want:    "http://example.com/lib.dart",
			wantBad: true,
		},
		{
			name:    "first rejected import wins",
			imports: []string{"dart:html", "package:one/one.dart", "package:two/two.dart"},
			want:    "package:one/one.dart",
			wantBad: true,
		},
		{
			name:    "prefix without trailing slash is not approved",
			imports: []string{"package:pathology/p.dart"},
			want:    "package:pathology/p.dart",
			wantBad: true,
		},
		{
			name:    "package sharing the framework name prefix",
			imports: []string{"package:flutterfire_core/core.dart"},
			want:    "package:flutterfire_core/core.dart",
			wantBad: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, bad := UnsupportedImport(tt.imports)
			assert.Equal(t, tt.wantBad, bad)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsesRestrictedFramework(t *testing.T) {
	tests := []struct {
		name    string
		imports []string
		want    bool
	}{
		{"none", nil, false},
		{"standard only", []string{"dart:html"}, false},
		{"approved non framework", []string{"package:http/http.dart"}, false},
		{"flutter material", []string{"dart:ui", "package:flutter/material.dart"}, true},
		{"flutter test", []string{"package:flutter_test/flutter_test.dart"}, true},
		{"web plugins", []string{"package:flutter_web_plugins/url_strategy.dart"}, true},
		{"similar package name", []string{"package:flutterfire_core/core.dart"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UsesRestrictedFramework(tt.imports))
		})
	}
}

func TestFrameworkPrefixesAreApproved(t *testing.T) {
	for _, p := range FrameworkPrefixes {
		_, bad := UnsupportedImport([]string{p + "x.dart"})
		assert.False(t, bad, "framework prefix %s should be approved", p)
	}
}
