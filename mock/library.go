package mock

import (
	"strings"
	"time"
)

// Library is a tree of named generators. Inner nodes are categories
// (map[string]interface{}); leaves are either func() interface{}, which is
// invoked, or a constant returned as is.
type Library map[string]interface{}

// Walk resolves a dotted path. An unknown segment, or a path that stops on a
// category, resolves to nothing.
func (l Library) Walk(path string) (interface{}, bool) {
	var current interface{} = map[string]interface{}(l)
	for _, seg := range strings.Split(path, ".") {
		category, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		next, ok := category[seg]
		if !ok {
			return nil, false
		}
		current = next
	}

	switch v := current.(type) {
	case func() interface{}:
		return v(), true
	case map[string]interface{}:
		return nil, false
	default:
		return v, true
	}
}

// DefaultLibrary builds the category library on top of g's faker. Callers
// must hold g.mu while invoking its members, which Generator.Lookup does.
func DefaultLibrary(g *Generator) Library {
	return Library{
		"person": map[string]interface{}{
			"fullName":  func() interface{} { return g.faker.Name() },
			"firstName": func() interface{} { return g.faker.FirstName() },
			"lastName":  func() interface{} { return g.faker.LastName() },
			"gender":    func() interface{} { return g.faker.Gender() },
			"jobTitle":  func() interface{} { return g.faker.JobTitle() },
		},
		"internet": map[string]interface{}{
			"email":      func() interface{} { return g.faker.Email() },
			"userName":   func() interface{} { return g.faker.Username() },
			"url":        func() interface{} { return g.faker.URL() },
			"domainName": func() interface{} { return g.faker.DomainName() },
			"ipv4":       func() interface{} { return g.faker.IPv4Address() },
			"ipv6":       func() interface{} { return g.faker.IPv6Address() },
			"userAgent":  func() interface{} { return g.faker.UserAgent() },
		},
		"location": map[string]interface{}{
			"city":    func() interface{} { return g.faker.City() },
			"country": func() interface{} { return g.faker.Country() },
			"state":   func() interface{} { return g.faker.State() },
			"street":  func() interface{} { return g.faker.Street() },
			"zipCode": func() interface{} { return g.faker.Zip() },
		},
		"company": map[string]interface{}{
			"name": func() interface{} { return g.faker.Company() },
		},
		"phone": map[string]interface{}{
			"number": func() interface{} { return g.faker.Phone() },
		},
		"string": map[string]interface{}{
			"uuid":   func() interface{} { return g.faker.UUID() },
			"alpha":  func() interface{} { return g.faker.LetterN(10) },
			"digits": func() interface{} { return g.faker.DigitN(6) },
		},
		"lorem": map[string]interface{}{
			"word":     func() interface{} { return g.faker.Word() },
			"phrase":   func() interface{} { return g.faker.Phrase() },
			"sentence": func() interface{} { return g.faker.Sentence(8) },
		},
		"datatype": map[string]interface{}{
			"boolean": func() interface{} { return g.faker.Bool() },
			"number":  func() interface{} { return float64(g.faker.Number(0, 99999)) },
		},
		"color": map[string]interface{}{
			"hex":   func() interface{} { return g.faker.HexColor() },
			"human": func() interface{} { return g.faker.Color() },
		},
		"date": map[string]interface{}{
			"recent": func() interface{} {
				now := g.now()
				return g.faker.DateRange(now.Add(-24*time.Hour), now).Format(time.RFC3339)
			},
			"past": func() interface{} {
				now := g.now()
				return g.faker.DateRange(now.AddDate(-1, 0, 0), now).Format(time.RFC3339)
			},
			"future": func() interface{} {
				now := g.now()
				return g.faker.DateRange(now, now.AddDate(1, 0, 0)).Format(time.RFC3339)
			},
			"timestamp": func() interface{} { return float64(g.now().UnixMilli()) },
		},
	}
}
