package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltinDetectors(r)
	return r
}

func TestClassifyBooleanColumn(t *testing.T) {
	c := New(freshRegistry())
	result := c.Classify("is_active", []string{"true", "false", "true", "yes", "no"})

	best, score, ok := result.BestMatch(0.1)
	require.True(t, ok)
	assert.Equal(t, "boolean", best)
	assert.Greater(t, score, 0.0)
}

func TestClassifyDunsColumn(t *testing.T) {
	c := New(freshRegistry())
	values := []string{"123456789", "987654321", "11-222-3334", "456789123", "321654987"}
	result := c.Classify("duns_number", values)

	best, _, ok := result.BestMatch(0.1)
	require.True(t, ok)
	assert.Equal(t, "duns", best)

	// duns is a specialization of numeric: the parent must also be a
	// candidate, and the child's score must outrank a plain numeric column.
	_, hasParent := result.Candidates["numeric"]
	assert.True(t, hasParent)
}

func TestClassifyZipCodeColumn(t *testing.T) {
	c := New(freshRegistry())
	values := []string{"90210", "10001", "94107", "73301", "60606"}
	result := c.Classify("zip", values)

	best, _, ok := result.BestMatch(0.1)
	require.True(t, ok)
	assert.Equal(t, "zipcode", best)
}

func TestClassifyCountryCodeColumn(t *testing.T) {
	c := New(freshRegistry())
	values := []string{"US", "DE", "SE", "NO", "FI"}
	result := c.Classify("country", values)

	best, _, ok := result.BestMatch(0.1)
	require.True(t, ok)
	assert.Equal(t, "countrycode", best)
}

func TestClassifyUnrecognizedColumnHasNoBestMatch(t *testing.T) {
	c := New(freshRegistry())
	result := c.Classify("junk", []string{"!@#$", "%^&*", "()_+", "{}[]", "<>?/"})

	_, _, ok := result.BestMatch(0.5)
	assert.False(t, ok)
}

func TestRankedIsDescendingByScore(t *testing.T) {
	c := New(freshRegistry())
	result := c.Classify("company_name", []string{"Acme Corp", "Globex Inc", "Initech LLC", "Umbrella Corp"})

	ranked := result.Ranked()
	require.NotEmpty(t, ranked)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, result.Candidates[ranked[i-1]], result.Candidates[ranked[i]])
	}
}

func TestMostGenericWalksToRoot(t *testing.T) {
	c := New(freshRegistry())
	result := c.Classify("se_orgnr", []string{"5566778899", "1234567890", "165566778899", "9876543210"})

	root, ok := result.MostGeneric()
	require.True(t, ok)
	assert.Equal(t, "numeric", root)
}

func TestNormalizeBounds(t *testing.T) {
	assert.Equal(t, 0.0, normalize(0))
	assert.Equal(t, 0.0, normalize(-5))
	assert.InDelta(t, 0.9, normalize(2), 1e-9)
	assert.Less(t, normalize(1000), 1.0)
}

func TestRegistryDepthComputedAtRegistration(t *testing.T) {
	r := freshRegistry()
	assert.Equal(t, 0, r.Depth("numeric"))
	assert.Equal(t, 1, r.Depth("duns"))
	assert.Equal(t, 2, r.Depth("swedishregistrationnumber"))
}
