package mock

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

func newTestGenerator() *Generator {
	return New(WithSeed(42), WithClock(func() time.Time { return fixedNow }))
}

func TestIntegerFixedRange(t *testing.T) {
	g := newTestGenerator()

	val, ok := g.Lookup("@integer(1,1)")
	require.True(t, ok)
	assert.Equal(t, 1.0, val)
}

func TestIntegerRange(t *testing.T) {
	g := newTestGenerator()
	for i := 0; i < 50; i++ {
		val := g.Generate("@integer(3, 6)")
		n, ok := val.(float64)
		require.True(t, ok, "got %T", val)
		assert.GreaterOrEqual(t, n, 3.0)
		assert.LessOrEqual(t, n, 6.0)
	}
}

func TestPatterns(t *testing.T) {
	g := newTestGenerator()

	tests := []struct {
		directive string
		check     func(t *testing.T, v interface{})
	}{
		{"@boolean", func(t *testing.T, v interface{}) { assert.IsType(t, true, v) }},
		{"@natural(5,5)", func(t *testing.T, v interface{}) { assert.Equal(t, 5.0, v) }},
		{"@float(1,1,2,2)", func(t *testing.T, v interface{}) {
			f := v.(float64)
			assert.GreaterOrEqual(t, f, 1.01)
			assert.Less(t, f, 2.0)
		}},
		{"@string(4)", func(t *testing.T, v interface{}) { assert.Len(t, v, 4) }},
		{`@string("number", 6)`, func(t *testing.T, v interface{}) {
			assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), v)
		}},
		{"@character('upper')", func(t *testing.T, v interface{}) {
			assert.Regexp(t, regexp.MustCompile(`^[A-Z]$`), v)
		}},
		{"@guid", func(t *testing.T, v interface{}) {
			assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}$`), v)
		}},
		{`@now("yyyy-MM-dd HH:mm:ss")`, func(t *testing.T, v interface{}) {
			assert.Equal(t, "2024-03-05 14:07:09", v)
		}},
		{"@date", func(t *testing.T, v interface{}) {
			assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), v)
		}},
		{"@timestamp", func(t *testing.T, v interface{}) { assert.Equal(t, float64(fixedNow.UnixMilli()), v) }},
		{"@pick(red, 7)", func(t *testing.T, v interface{}) { assert.Contains(t, []interface{}{"red", 7.0}, v) }},
		{"@name", func(t *testing.T, v interface{}) { assert.NotEmpty(t, v) }},
		{"@EMAIL", func(t *testing.T, v interface{}) { assert.Contains(t, v, "@") }},
		{"@word(5)", func(t *testing.T, v interface{}) { assert.Len(t, v, 5) }},
	}

	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			val, ok := g.Lookup(tt.directive)
			require.True(t, ok)
			tt.check(t, val)
		})
	}
}

func TestIncrement(t *testing.T) {
	g := newTestGenerator()
	assert.Equal(t, 1.0, g.Generate("@increment"))
	assert.Equal(t, 3.0, g.Generate("@increment(2)"))
}

func TestLibraryFallback(t *testing.T) {
	g := newTestGenerator()

	val, ok := g.Lookup("@person.fullName")
	require.True(t, ok)
	assert.NotEmpty(t, val)

	val, ok = g.Lookup("@internet.email")
	require.True(t, ok)
	assert.Contains(t, val, "@")

	val, ok = g.Lookup("@date.timestamp")
	require.True(t, ok)
	assert.Equal(t, float64(fixedNow.UnixMilli()), val)
}

func TestUnrecognizedReturnsInput(t *testing.T) {
	g := newTestGenerator()

	tests := []string{
		"@integr(1,2)",       // typo, no library match
		"@person.fullNme",    // unknown member
		"@person",            // category is not invocable
		"@nosuch.category.x", // unknown category
		"@integer(a,b)",      // bad arguments
		"not a directive",    // missing marker
	}

	for _, directive := range tests {
		t.Run(directive, func(t *testing.T) {
			_, ok := g.Lookup(directive)
			assert.False(t, ok)
			assert.Equal(t, directive, g.Generate(directive))
		})
	}
}

func TestLibraryConstantsAndPanics(t *testing.T) {
	lib := Library{
		"app": map[string]interface{}{
			"version": "1.2.3",
			"boom":    func() interface{} { panic("broken generator") },
		},
	}
	g := New(WithLibrary(lib))

	val, ok := g.Lookup("@app.version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", val)

	assert.Equal(t, "@app.boom", g.Generate("@app.boom"))
}

func TestConcurrentGenerate(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g.Generate("@integer(1,100)")
				g.Generate("@person.fullName")
			}
		}()
	}
	wg.Wait()
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", FormatDate(fixedNow, "yyyy-MM-dd"))
	assert.Equal(t, "24/3/5 02:07 PM", FormatDate(fixedNow, "yy/M/d hh:mm A"))
	assert.Equal(t, "14:07:09.000", FormatDate(fixedNow, "HH:mm:ss.SS"))
}
