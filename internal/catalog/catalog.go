package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type (
	FeatureKey string
	LimitKey   string
	PlanID     string
	AddonID    string
)

// ResetPeriod controls how a limit's usage counter rolls over.
type ResetPeriod string

const (
	ResetNever   ResetPeriod = "never"
	ResetMonthly ResetPeriod = "monthly"
	ResetYearly  ResetPeriod = "yearly"
)

func (r ResetPeriod) Valid() bool {
	switch r {
	case ResetNever, ResetMonthly, ResetYearly:
		return true
	default:
		return false
	}
}

// Interval is the billing cadence of a plan.
type Interval string

const (
	IntervalNone  Interval = "none"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Unlimited is the sentinel limit value meaning "no ceiling". It must be
// checked with IsUnlimited and never compared numerically.
const Unlimited int64 = -1

func IsUnlimited(v int64) bool { return v == Unlimited }

// DefaultPlanID is the plan a team without a recorded plan falls back to.
const DefaultPlanID PlanID = "free"

type Feature struct {
	Key         FeatureKey `mapstructure:"key" json:"key"`
	Name        string     `mapstructure:"name" json:"name"`
	Description string     `mapstructure:"description" json:"description,omitempty"`
}

type Limit struct {
	Key         LimitKey    `mapstructure:"key" json:"key"`
	Name        string      `mapstructure:"name" json:"name"`
	ResetPeriod ResetPeriod `mapstructure:"reset_period" json:"reset_period"`
	Description string      `mapstructure:"description" json:"description,omitempty"`
}

type Plan struct {
	ID         PlanID             `mapstructure:"id" json:"id"`
	Name       string             `mapstructure:"name" json:"name"`
	PriceCents int64              `mapstructure:"price_cents" json:"price_cents"`
	Interval   Interval           `mapstructure:"interval" json:"interval"`
	Features   []FeatureKey       `mapstructure:"features" json:"features"`
	Limits     map[LimitKey]int64 `mapstructure:"limits" json:"limits"`
}

// HasFeature reports whether the plan bundles the feature.
func (p Plan) HasFeature(key FeatureKey) bool {
	for _, f := range p.Features {
		if f == key {
			return true
		}
	}
	return false
}

func (p Plan) clone() Plan {
	out := p
	out.Features = append([]FeatureKey(nil), p.Features...)
	out.Limits = make(map[LimitKey]int64, len(p.Limits))
	for k, v := range p.Limits {
		out.Limits[k] = v
	}
	return out
}

// Addon is a purchasable bundle granted on top of a plan. Limit values are
// per unit of quantity; Unlimited grants an uncapped limit outright.
type Addon struct {
	ID       AddonID            `mapstructure:"id" json:"id"`
	Name     string             `mapstructure:"name" json:"name"`
	Features []FeatureKey       `mapstructure:"features" json:"features"`
	Limits   map[LimitKey]int64 `mapstructure:"limits" json:"limits"`
}

func (a Addon) clone() Addon {
	out := a
	out.Features = append([]FeatureKey(nil), a.Features...)
	out.Limits = make(map[LimitKey]int64, len(a.Limits))
	for k, v := range a.Limits {
		out.Limits[k] = v
	}
	return out
}

// Definition is the raw input a Catalog is built from.
type Definition struct {
	Features []Feature `mapstructure:"features" json:"features"`
	Limits   []Limit   `mapstructure:"limits" json:"limits"`
	Plans    []Plan    `mapstructure:"plans" json:"plans"`
	Addons   []Addon   `mapstructure:"addons" json:"addons"`
}

// Catalog is the immutable set of features, limits, plans and addons known to
// the process. Every accessor returns copies.
type Catalog struct {
	features map[FeatureKey]Feature
	limits   map[LimitKey]Limit
	plans    map[PlanID]Plan
	addons   map[AddonID]Addon
	version  string
}

// New validates def and builds a Catalog from a deep copy of it.
func New(def Definition) (*Catalog, error) {
	c := &Catalog{
		features: make(map[FeatureKey]Feature, len(def.Features)),
		limits:   make(map[LimitKey]Limit, len(def.Limits)),
		plans:    make(map[PlanID]Plan, len(def.Plans)),
		addons:   make(map[AddonID]Addon, len(def.Addons)),
	}

	for _, f := range def.Features {
		f.Key = FeatureKey(strings.TrimSpace(string(f.Key)))
		if f.Key == "" {
			return nil, fmt.Errorf("%w: empty feature key", ErrInvalidCatalog)
		}
		if _, dup := c.features[f.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrInvalidCatalog, f.Key)
		}
		c.features[f.Key] = f
	}

	for _, l := range def.Limits {
		l.Key = LimitKey(strings.TrimSpace(string(l.Key)))
		if l.Key == "" {
			return nil, fmt.Errorf("%w: empty limit key", ErrInvalidCatalog)
		}
		if _, dup := c.limits[l.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate limit %q", ErrInvalidCatalog, l.Key)
		}
		if l.ResetPeriod == "" {
			l.ResetPeriod = ResetNever
		}
		if !l.ResetPeriod.Valid() {
			return nil, fmt.Errorf("%w: limit %q has reset period %q", ErrInvalidCatalog, l.Key, l.ResetPeriod)
		}
		c.limits[l.Key] = l
	}

	for _, p := range def.Plans {
		if strings.TrimSpace(string(p.ID)) == "" {
			return nil, fmt.Errorf("%w: empty plan id", ErrInvalidCatalog)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, p.ID)
		}
		if p.Interval == "" {
			p.Interval = IntervalNone
		}
		if err := c.validateGrants("plan", string(p.ID), p.Features, p.Limits); err != nil {
			return nil, err
		}
		p = p.clone()
		p.Features = dedupeFeatures(p.Features)
		c.plans[p.ID] = p
	}
	if _, ok := c.plans[DefaultPlanID]; !ok {
		return nil, fmt.Errorf("%w: default plan %q missing", ErrInvalidCatalog, DefaultPlanID)
	}

	for _, a := range def.Addons {
		if strings.TrimSpace(string(a.ID)) == "" {
			return nil, fmt.Errorf("%w: empty addon id", ErrInvalidCatalog)
		}
		if _, dup := c.addons[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate addon %q", ErrInvalidCatalog, a.ID)
		}
		if err := c.validateGrants("addon", string(a.ID), a.Features, a.Limits); err != nil {
			return nil, err
		}
		a = a.clone()
		a.Features = dedupeFeatures(a.Features)
		c.addons[a.ID] = a
	}

	version, err := c.computeVersion()
	if err != nil {
		return nil, err
	}
	c.version = version
	return c, nil
}

func (c *Catalog) validateGrants(kind, id string, features []FeatureKey, limits map[LimitKey]int64) error {
	for _, f := range features {
		if _, ok := c.features[f]; !ok {
			return fmt.Errorf("%w: %s %q references unknown feature %q", ErrInvalidCatalog, kind, id, f)
		}
	}
	for k, v := range limits {
		if _, ok := c.limits[k]; !ok {
			return fmt.Errorf("%w: %s %q references unknown limit %q", ErrInvalidCatalog, kind, id, k)
		}
		if v < Unlimited {
			return fmt.Errorf("%w: %s %q limit %q has value %d", ErrInvalidCatalog, kind, id, k, v)
		}
	}
	return nil
}

func dedupeFeatures(in []FeatureKey) []FeatureKey {
	seen := make(map[FeatureKey]struct{}, len(in))
	out := in[:0]
	for _, f := range in {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// GetPlan returns the plan or a *PlanNotFoundError.
func (c *Catalog) GetPlan(id PlanID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, &PlanNotFoundError{PlanID: id}
	}
	return p.clone(), nil
}

// GetFeature panics with *UnknownKeyError for keys outside the catalog.
func (c *Catalog) GetFeature(key FeatureKey) Feature {
	f, ok := c.features[key]
	if !ok {
		panic(&UnknownKeyError{Kind: "feature", Key: string(key)})
	}
	return f
}

// GetLimit panics with *UnknownKeyError for keys outside the catalog.
func (c *Catalog) GetLimit(key LimitKey) Limit {
	l, ok := c.limits[key]
	if !ok {
		panic(&UnknownKeyError{Kind: "limit", Key: string(key)})
	}
	return l
}

func (c *Catalog) GetAddon(id AddonID) (Addon, error) {
	a, ok := c.addons[id]
	if !ok {
		return Addon{}, fmt.Errorf("%w: %q", ErrAddonNotFound, id)
	}
	return a.clone(), nil
}

// HasFeature and HasLimit validate untrusted keys without panicking.
func (c *Catalog) HasFeature(key FeatureKey) bool {
	_, ok := c.features[key]
	return ok
}

func (c *Catalog) HasLimit(key LimitKey) bool {
	_, ok := c.limits[key]
	return ok
}

func (c *Catalog) HasPlan(id PlanID) bool {
	_, ok := c.plans[id]
	return ok
}

func (c *Catalog) Features() []Feature {
	out := make([]Feature, 0, len(c.features))
	for _, f := range c.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Catalog) Limits() []Limit {
	out := make([]Limit, 0, len(c.limits))
	for _, l := range c.limits {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Addons() []Addon {
	out := make([]Addon, 0, len(c.addons))
	for _, a := range c.addons {
		out = append(out, a.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Version is a short content hash of the catalog. Two catalogs with the same
// definitions share a version regardless of input ordering.
func (c *Catalog) Version() string {
	return c.version
}

func (c *Catalog) computeVersion() (string, error) {
	canonical := Definition{
		Features: c.Features(),
		Limits:   c.Limits(),
		Plans:    c.Plans(),
		Addons:   c.Addons(),
	}
	for i := range canonical.Plans {
		sort.Slice(canonical.Plans[i].Features, func(a, b int) bool {
			return canonical.Plans[i].Features[a] < canonical.Plans[i].Features[b]
		})
	}
	for i := range canonical.Addons {
		sort.Slice(canonical.Addons[i].Features, func(a, b int) bool {
			return canonical.Addons[i].Features[a] < canonical.Addons[i].Features[b]
		})
	}
	// encoding/json sorts map keys, which keeps limit maps stable.
	raw, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12], nil
}
