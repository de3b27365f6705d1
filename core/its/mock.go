package its

import (
	"context"
	"fmt"
	"io/fs"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	appfs "github.com/umoorsehhat/sehhat/fs"
)

const poolsPath = "its/pools.yaml"

type (
	place struct {
		City    string `yaml:"city"`
		Country string `yaml:"country"`
	}

	// Pools are the values the mock directory draws profiles from.
	Pools struct {
		Prefixes         []string `yaml:"prefixes"`
		MaleFirstNames   []string `yaml:"male_first_names"`
		FemaleFirstNames []string `yaml:"female_first_names"`
		LastNames        []string `yaml:"last_names"`
		ArabicFirstNames []string `yaml:"arabic_first_names"`
		Cities           []place  `yaml:"cities"`
		Jamaats          []string `yaml:"jamaats"`
		Jamiats          []string `yaml:"jamiats"`
		Occupations      []string `yaml:"occupations"`
		Qualifications   []string `yaml:"qualifications"`
		Categories       []string `yaml:"categories"`
		Streets          []string `yaml:"streets"`
	}
)

// LoadPools reads the pools embedded at its/pools.yaml.
func LoadPools() (Pools, error) {
	return loadPools(appfs.FS, poolsPath)
}

func loadPools(fsys fs.FS, name string) (Pools, error) {
	var pools Pools
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return pools, errors.Wrap(err, "reading ITS pools")
	}
	if err = yaml.Unmarshal(data, &pools); err != nil {
		return pools, errors.Wrap(err, "decoding ITS pools")
	}
	if err = pools.check(); err != nil {
		return pools, err
	}
	return pools, nil
}

func (p Pools) check() error {
	empty := lo.PickBy(map[string]int{
		"prefixes":           len(p.Prefixes),
		"male_first_names":   len(p.MaleFirstNames),
		"female_first_names": len(p.FemaleFirstNames),
		"last_names":         len(p.LastNames),
		"arabic_first_names": len(p.ArabicFirstNames),
		"cities":             len(p.Cities),
		"jamaats":            len(p.Jamaats),
		"jamiats":            len(p.Jamiats),
		"occupations":        len(p.Occupations),
		"qualifications":     len(p.Qualifications),
		"categories":         len(p.Categories),
		"streets":            len(p.Streets),
	}, func(_ string, n int) bool { return n == 0 })
	if len(empty) > 0 {
		return errors.Errorf("empty ITS pools: %s", strings.Join(lo.Keys(empty), ", "))
	}
	return nil
}

// MockProvider generates fake but stable profiles: the same ITS ID always yields the same profile
// as long as the pools are unchanged.
type MockProvider struct {
	pools   Pools
	allowed map[string]struct{}
}

// NewMockProvider returns a MockProvider knowing every valid ITS ID, or only allowedIDs when provided.
func NewMockProvider(pools Pools, allowedIDs ...string) *MockProvider {
	p := &MockProvider{pools: pools}
	if len(allowedIDs) > 0 {
		p.allowed = make(map[string]struct{}, len(allowedIDs))
		for _, id := range allowedIDs {
			p.allowed[strings.TrimSpace(id)] = struct{}{}
		}
	}
	return p
}

func (p *MockProvider) Lookup(ctx context.Context, itsID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	seed, err := parseID(itsID)
	if err != nil {
		return Profile{}, err
	}
	if p.allowed != nil {
		if _, ok := p.allowed[itsID]; !ok {
			return Profile{}, ErrProfileNotFound
		}
	}
	return p.generate(itsID, seed), nil
}

// generate draws the fields in a fixed order; reordering the draws changes every profile.
func (p *MockProvider) generate(itsID string, seed int64) Profile {
	r := rand.New(rand.NewSource(seed))
	pick := func(pool []string) string { return pool[r.Intn(len(pool))] }

	gender := "male"
	firstNames := p.pools.MaleFirstNames
	if r.Intn(2) == 1 {
		gender = "female"
		firstNames = p.pools.FemaleFirstNames
	}
	first := pick(firstNames)
	last := pick(p.pools.LastNames)
	prefix := pick(p.pools.Prefixes)
	arabic := pick(p.pools.ArabicFirstNames)
	age := 18 + r.Intn(63)
	loc := p.pools.Cities[r.Intn(len(p.pools.Cities))]
	street := pick(p.pools.Streets)
	houseNo := 1 + r.Intn(250)
	mobile := fmt.Sprintf("+%d%09d", 1+r.Intn(98), r.Intn(1_000_000_000))

	fullName := strings.TrimSpace(strings.Join([]string{prefix, first, last}, " "))
	return Profile{
		ITSID:         itsID,
		FullName:      strings.Join(strings.Fields(fullName), " "),
		Prefix:        prefix,
		FirstName:     first,
		LastName:      last,
		ArabicName:    arabic,
		Gender:        gender,
		Age:           age,
		Email:         fmt.Sprintf("%s.%s.%s@its.example.com", strings.ToLower(first), strings.ToLower(last), itsID),
		Mobile:        mobile,
		Address:       fmt.Sprintf("%d %s", houseNo, street),
		City:          loc.City,
		Country:       loc.Country,
		Jamaat:        pick(p.pools.Jamaats),
		Jamiat:        pick(p.pools.Jamiats),
		Occupation:    pick(p.pools.Occupations),
		Qualification: pick(p.pools.Qualifications),
		Category:      pick(p.pools.Categories),
	}
}
