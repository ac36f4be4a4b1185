package mock

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var directiveRegex = regexp.MustCompile(`^@([A-Za-z_]\w*)(?:\((.*)\))?$`)

// patternFunc generates a value from the directive arguments
type patternFunc func(args []string) (interface{}, error)

// patternEngine implements the Mock.js style placeholder vocabulary
type patternEngine struct {
	g        *Generator
	counter  atomic.Int64
	patterns map[string]patternFunc
}

func newPatternEngine(g *Generator) *patternEngine {
	p := &patternEngine{g: g}
	p.patterns = map[string]patternFunc{
		"boolean":   p.boolean,
		"bool":      p.boolean,
		"natural":   p.natural,
		"integer":   p.integer,
		"int":       p.integer,
		"float":     p.float,
		"character": p.character,
		"char":      p.character,
		"string":    p.str,
		"str":       p.str,
		"date":      p.date("yyyy-MM-dd", false),
		"time":      p.date("HH:mm:ss", false),
		"datetime":  p.date("yyyy-MM-dd HH:mm:ss", false),
		"now":       p.date("yyyy-MM-dd HH:mm:ss", true),
		"timestamp": p.timestamp,
		"guid":      p.guid,
		"uuid":      p.guid,
		"increment": p.increment,
		"pick":      p.pick,
		"name":      noArgs(func() interface{} { return g.faker.Name() }),
		"first":     noArgs(func() interface{} { return g.faker.FirstName() }),
		"last":      noArgs(func() interface{} { return g.faker.LastName() }),
		"email":     noArgs(func() interface{} { return g.faker.Email() }),
		"url":       noArgs(func() interface{} { return g.faker.URL() }),
		"domain":    noArgs(func() interface{} { return g.faker.DomainName() }),
		"ip":        noArgs(func() interface{} { return g.faker.IPv4Address() }),
		"phone":     noArgs(func() interface{} { return g.faker.Phone() }),
		"city":      noArgs(func() interface{} { return g.faker.City() }),
		"province":  noArgs(func() interface{} { return g.faker.State() }),
		"country":   noArgs(func() interface{} { return g.faker.Country() }),
		"zip":       noArgs(func() interface{} { return g.faker.Zip() }),
		"color":     noArgs(func() interface{} { return g.faker.HexColor() }),
		"word":      p.word,
		"title":     p.title,
		"sentence":  p.sentence,
		"paragraph": p.paragraph,
	}
	return p
}

// Generate implements Pattern
func (p *patternEngine) Generate(directive string) (interface{}, error) {
	m := directiveRegex.FindStringSubmatch(strings.TrimSpace(directive))
	if m == nil {
		return nil, ErrUnrecognized
	}
	fn, ok := p.patterns[strings.ToLower(m[1])]
	if !ok {
		return nil, ErrUnrecognized
	}
	return fn(splitArgs(m[2]))
}

func noArgs(fn func() interface{}) patternFunc {
	return func(_ []string) (interface{}, error) { return fn(), nil }
}

// splitArgs splits on commas outside of quotes and strips the quotes
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var args []string
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				sb.WriteByte(ch)
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ',':
			args = append(args, strings.TrimSpace(sb.String()))
			sb.Reset()
		default:
			sb.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(sb.String()))
}

func intArg(args []string, i int, def int) (int, error) {
	if i >= len(args) || args[i] == "" {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return n, nil
}

// between returns a random integer in [min, max]
func (p *patternEngine) between(min, max int) int {
	if min > max {
		min, max = max, min
	}
	if min == max {
		return min
	}
	return p.g.faker.Number(min, max)
}

func (p *patternEngine) boolean(_ []string) (interface{}, error) {
	return p.g.faker.Bool(), nil
}

func (p *patternEngine) natural(args []string) (interface{}, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	if min < 0 {
		min = 0
	}
	return float64(p.between(min, max)), nil
}

func (p *patternEngine) integer(args []string) (interface{}, error) {
	min, err := intArg(args, 0, math.MinInt32)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return float64(p.between(min, max)), nil
}

// float(min, max, dmin, dmax): integer part in [min, max] with dmin..dmax
// decimal places
func (p *patternEngine) float(args []string) (interface{}, error) {
	min, err := intArg(args, 0, math.MinInt16)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, math.MaxInt16)
	if err != nil {
		return nil, err
	}
	dmin, err := intArg(args, 2, 0)
	if err != nil {
		return nil, err
	}
	dmax, err := intArg(args, 3, 17)
	if err != nil {
		return nil, err
	}
	dmin = clamp(dmin, 0, 17)
	dmax = clamp(dmax, 0, 17)

	whole := p.between(min, max)
	digits := p.between(dmin, dmax)
	text := strconv.Itoa(whole)
	if digits > 0 {
		frac := p.g.faker.DigitN(uint(digits))
		// a trailing zero would be lost in the float, keep the digit count honest
		if strings.HasSuffix(frac, "0") {
			frac = frac[:len(frac)-1] + strconv.Itoa(p.between(1, 9))
		}
		text += "." + frac
	}
	return strconv.ParseFloat(text, 64)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

var characterPools = map[string]string{
	"lower":  "abcdefghijklmnopqrstuvwxyz",
	"upper":  "ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	"number": "0123456789",
	"symbol": "!@#$%^&*()[]",
}

func (p *patternEngine) pool(name string) string {
	if pool, ok := characterPools[strings.ToLower(name)]; ok {
		return pool
	}
	if name == "" {
		return characterPools["lower"] + characterPools["upper"] + characterPools["number"] + characterPools["symbol"]
	}
	return name
}

func (p *patternEngine) randomChars(pool string, n int) string {
	chars := []rune(pool)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteRune(chars[p.between(0, len(chars)-1)])
	}
	return sb.String()
}

func (p *patternEngine) character(args []string) (interface{}, error) {
	pool := ""
	if len(args) > 0 {
		pool = args[0]
	}
	return p.randomChars(p.pool(pool), 1), nil
}

// str accepts (), (len), (pool, len), (min, max) and (pool, min, max)
func (p *patternEngine) str(args []string) (interface{}, error) {
	pool := ""
	if len(args) > 0 {
		if _, err := strconv.Atoi(args[0]); err != nil {
			pool = args[0]
			args = args[1:]
		}
	}
	min, err := intArg(args, 0, 3)
	if err != nil {
		return nil, err
	}
	max, err := intArg(args, 1, min)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		max = 7
	}
	return p.randomChars(p.pool(pool), p.between(min, max)), nil
}

// date formats a random moment of the last ten years, or the current time
// when now is set
func (p *patternEngine) date(defaultFormat string, now bool) patternFunc {
	return func(args []string) (interface{}, error) {
		format := defaultFormat
		if len(args) > 0 && args[0] != "" {
			format = args[0]
		}
		t := p.g.now()
		if !now {
			t = p.g.faker.DateRange(t.AddDate(-10, 0, 0), t)
		}
		return FormatDate(t, format), nil
	}
}

func (p *patternEngine) timestamp(_ []string) (interface{}, error) {
	return float64(p.g.now().UnixMilli()), nil
}

func (p *patternEngine) guid(_ []string) (interface{}, error) {
	return uuid.NewString(), nil
}

func (p *patternEngine) increment(args []string) (interface{}, error) {
	step, err := intArg(args, 0, 1)
	if err != nil {
		return nil, err
	}
	return float64(p.counter.Add(int64(step))), nil
}

func (p *patternEngine) pick(args []string) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("pick: no choices")
	}
	choice := args[p.between(0, len(args)-1)]
	if n, err := strconv.ParseFloat(choice, 64); err == nil {
		return n, nil
	}
	return choice, nil
}

// wordLength reads (), (n) or (min, max)
func (p *patternEngine) wordLength(args []string, defMin, defMax int) (int, error) {
	min, err := intArg(args, 0, defMin)
	if err != nil {
		return 0, err
	}
	max, err := intArg(args, 1, defMax)
	if err != nil {
		return 0, err
	}
	if len(args) == 1 {
		max = min
	}
	return p.between(min, max), nil
}

func (p *patternEngine) word(args []string) (interface{}, error) {
	if len(args) == 0 {
		return p.g.faker.Word(), nil
	}
	n, err := p.wordLength(args, 3, 10)
	if err != nil {
		return nil, err
	}
	return strings.ToLower(p.g.faker.LetterN(uint(n))), nil
}

func (p *patternEngine) title(args []string) (interface{}, error) {
	n, err := p.wordLength(args, 3, 7)
	if err != nil {
		return nil, err
	}
	words := make([]string, n)
	for i := range words {
		w := p.g.faker.Word()
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " "), nil
}

func (p *patternEngine) sentence(args []string) (interface{}, error) {
	n, err := p.wordLength(args, 12, 18)
	if err != nil {
		return nil, err
	}
	return p.g.faker.Sentence(n), nil
}

func (p *patternEngine) paragraph(args []string) (interface{}, error) {
	n, err := p.wordLength(args, 3, 7)
	if err != nil {
		return nil, err
	}
	return p.g.faker.Paragraph(1, n, 12, " "), nil
}
