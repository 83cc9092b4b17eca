package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterComments(t *testing.T, f *CommentFilter, in string) string {
	t.Helper()
	out, err := f.Transform(context.Background(), in, "a.css", "b.css")
	require.NoError(t, err)
	return out
}

func TestCommentFilterKeep(t *testing.T) {
	f := NewCommentFilter(nil)

	assert.True(t, f.Keep(" stylelint-disable no-descending-specificity "))
	assert.True(t, f.Keep("STYLELINT-disable"))
	assert.True(t, f.Keep(" filepath: blocks/nav/nav.css"))
	assert.True(t, f.Keep("@preserve keep me"))
	assert.False(t, f.Keep(" just a note "))
	assert.False(t, f.Keep("note: stylelint"))
	assert.False(t, f.Keep(""))
}

func TestCommentFilterRemovesOrdinaryComments(t *testing.T) {
	f := NewCommentFilter(nil)
	in := "/* header */\n.a {\n  /* inside */\n  color: red; /* trailing */\n}\n"

	out := filterComments(t, f, in)
	assert.Equal(t, ".a {\n  color: red;\n}\n", out)
}

func TestCommentFilterKeepsAllowListedComments(t *testing.T) {
	f := NewCommentFilter(nil)
	in := "/* stylelint-disable */\n.a {\n  /* filepath: x.css */\n  color: red;\n}\n/* @preserve legal */\n"

	out := filterComments(t, f, in)
	assert.Equal(t, in, out)
}

func TestCommentFilterAtAnyDepth(t *testing.T) {
	f := NewCommentFilter(nil)
	in := "@media screen {\n  .a {\n    .b { /* deep */ color: blue; }\n  }\n}\n"

	out := filterComments(t, f, in)
	assert.NotContains(t, out, "deep")
	assert.Contains(t, out, ".b { color: blue; }")
}

func TestCommentFilterIgnoresCommentLikeStrings(t *testing.T) {
	f := NewCommentFilter(nil)
	in := ".a::before { content: \"/* not a comment */\"; }\n"

	assert.Equal(t, in, filterComments(t, f, in))
}

func TestCommentFilterCustomPrefixes(t *testing.T) {
	f := NewCommentFilter([]string{"KEEP"})

	out := filterComments(t, f, "/* keep this */\n/* stylelint-disable */\n.a{}")
	assert.Equal(t, "/* keep this */\n.a{}", out)
}

func TestCommentFilterCollapsesInlineGap(t *testing.T) {
	f := NewCommentFilter(nil)
	assert.Equal(t, ".a .b{}", filterComments(t, f, ".a /* x */ .b{}"))
}

func TestProtectRoundTrip(t *testing.T) {
	f := NewCommentFilter(nil)
	in := "/* stylelint-disable */\n/* other */\n.a {\n  /* @preserve inner */\n  color: red;\n}\n"

	marked, bodies := f.protect(in)
	assert.Contains(t, marked, "/*! stylelint-disable */")
	assert.Contains(t, marked, "/* other */")
	assert.Contains(t, marked, keepPropPrefix+"0: 0;")
	assert.NotContains(t, marked, "inner */")
	assert.Equal(t, []string{" @preserve inner "}, bodies)
	assert.Equal(t, in, f.restore(marked, bodies))
}

func TestProtectMovesMidValueCommentToDeclarationBoundary(t *testing.T) {
	f := NewCommentFilter(nil)

	marked, bodies := f.protect(".a { color: /* stylelint-disable-line */ red }")
	assert.Equal(t, ".a { color:  red ;"+keepPropPrefix+"0: 0;}", marked)
	assert.Equal(t, ".a { color:  red ;/* stylelint-disable-line */}", f.restore(marked, bodies))
}

func TestRestoreAcceptsEsbuildFormatting(t *testing.T) {
	f := NewCommentFilter(nil)
	bodies := []string{" filepath: a.css "}

	out := f.restore(".a .b {\n  "+keepPropPrefix+"0: 0;\n  color: red;\n}\n", bodies)
	assert.Equal(t, ".a .b {\n  /* filepath: a.css */\n  color: red;\n}\n", out)

	// Unknown indices stay as they are.
	assert.Equal(t, ".a{"+keepPropPrefix+"7: 0;}", f.restore(".a{"+keepPropPrefix+"7: 0;}", bodies))
}
