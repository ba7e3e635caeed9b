// Package catalog holds the fixed set of subscription tiers and lookup helpers.
package catalog

// Tier describes a single subscription plan.
type Tier struct {
	ID         string
	Name       string
	Price      float64
	Currency   string
	DailyLimit int
	Features   []string
}

// Catalog is an ordered list of tiers, cheapest first.
type Catalog struct {
	tiers []Tier
}

// Tier identifiers for the built-in catalog.
const (
	TierFree   = "free"
	TierPro    = "pro"
	TierExpert = "expert"
)

// Default returns the built-in three-tier catalog.
func Default() *Catalog {
	return New([]Tier{
		{
			ID:         TierFree,
			Name:       "Free",
			Price:      0,
			Currency:   "USD",
			DailyLimit: 5,
			Features: []string{
				"5 script variations per day",
				"Basic analysis",
				"Standard templates",
			},
		},
		{
			ID:         TierPro,
			Name:       "Pro",
			Price:      7.99,
			Currency:   "USD",
			DailyLimit: 50,
			Features: []string{
				"50 script variations per day",
				"Advanced analysis",
				"Premium templates",
				"Priority support",
				"Export options",
				"API access",
				"24/7 priority support",
				"White-label options",
			},
		},
		{
			ID:         TierExpert,
			Name:       "Expert",
			Price:      19.99,
			Currency:   "USD",
			DailyLimit: 500,
			Features: []string{
				"500 script variations per day",
				"AI-powered insights",
				"Custom templates",
				"Everything in Pro plan included",
			},
		},
	})
}

// New creates a catalog from an ordered tier list.
func New(tiers []Tier) *Catalog {
	c := &Catalog{tiers: make([]Tier, len(tiers))}
	copy(c.tiers, tiers)
	return c
}

// Lookup returns the tier with the given id.
// The second return value is false when no tier matches.
func (c *Catalog) Lookup(id string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// DefaultTier returns the first (cheapest) tier in the catalog.
func (c *Catalog) DefaultTier() Tier {
	return c.tiers[0]
}

// Tiers returns a copy of the ordered tier list.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Compare orders two tier ids by catalog position: negative when a is below b,
// zero when equal, positive when a is above b. Unknown ids sort below every
// known tier. Position, not price or daily limit, decides upgrade direction,
// so reordering the catalog changes the answer.
func (c *Catalog) Compare(a, b string) int {
	return c.position(a) - c.position(b)
}

func (c *Catalog) position(id string) int {
	for i, t := range c.tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}
