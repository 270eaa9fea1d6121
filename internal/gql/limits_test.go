package gql

import (
	"testing"

	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckLimits_AllowsShallowQuery(t *testing.T) {
	doc, err := parser.Parse(parser.ParseParams{Source: `{ note(id: "1") { id title } }`})
	require.NoError(t, err)
	assert.NoError(t, CheckLimits(doc, 15, 1000))
}

func TestCheckLimits_RejectsDeepQuery(t *testing.T) {
	query := `{
		notes {
			id
			author
		}
	}`
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)

	err2 := CheckLimits(doc, 1, 1000)
	require.Error(t, err2)
	limitErr, ok := err2.(*LimitError)
	require.True(t, ok)
	assert.Equal(t, CodeDepthLimitExceeded, limitErr.Code)
}

func TestCheckLimits_RejectsHighComplexityQuery(t *testing.T) {
	query := `{ notes { id title content author tags } }`
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)

	err2 := CheckLimits(doc, 15, 3)
	require.Error(t, err2)
	limitErr, ok := err2.(*LimitError)
	require.True(t, ok)
	assert.Equal(t, CodeComplexityLimitExceeded, limitErr.Code)
}

func TestCheckLimits_FragmentsCountTowardDepth(t *testing.T) {
	query := `
	query WithFragment {
		note(id: "1") {
			...NoteFields
		}
	}
	fragment NoteFields on Note {
		id
		title
	}`
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	require.NoError(t, err)
	assert.NoError(t, CheckLimits(doc, 15, 1000))
	assert.Error(t, CheckLimits(doc, 1, 1000))
}
