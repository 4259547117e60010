package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/rebill/id"
	"github.com/xraph/rebill/item"
	"github.com/xraph/rebill/types"
)

// Fixture is a subscription history written by hand. Items refer to each
// other by key instead of by ID, and their order in the file is their
// creation order.
//
//	subscription: sub_01h455vb4pex5vsknk084sn02q
//	currency: usd
//	items:
//	  - key: jan
//	    kind: charge
//	    start: 2014-01-01
//	    end: 2014-02-01
//	    plan: gold
//	    rate: 1200
//	    amount: 1200
//	  - kind: repair
//	    target: jan
//	    start: 2014-01-23
//	    end: 2014-02-01
//	    amount: -348
type Fixture struct {
	Subscription string        `yaml:"subscription"`
	Currency     string        `yaml:"currency"`
	Items        []FixtureItem `yaml:"items"`
}

// FixtureItem is one Charge or Repair in a Fixture.
type FixtureItem struct {
	Key      string `yaml:"key"`
	Kind     string `yaml:"kind"`
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"`

	Plan  string `yaml:"plan"`
	Phase string `yaml:"phase"`
	Rate  int64  `yaml:"rate"`

	Target string `yaml:"target"`
}

// LoadFixture reads a Fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeFixture(f)
}

// DecodeFixture reads a Fixture from r. Unknown fields are rejected.
func DecodeFixture(r io.Reader) (*Fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var fx Fixture
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &fx, nil
}

// SubscriptionID returns the fixture's subscription, generating one when
// the file names none.
func (fx *Fixture) SubscriptionID() (id.SubscriptionID, error) {
	if fx.Subscription == "" {
		return id.NewSubscriptionID(), nil
	}
	return id.ParseSubscriptionID(fx.Subscription)
}

// History converts the fixture into items of subID. Each item is created
// one second after the previous one, starting at base.
func (fx *Fixture) History(subID id.SubscriptionID, base time.Time) ([]item.Item, error) {
	keys := make(map[string]id.ItemID, len(fx.Items))
	ids := make([]id.ItemID, len(fx.Items))
	for i, fi := range fx.Items {
		ids[i] = id.NewItemID()
		if fi.Key == "" {
			continue
		}
		if _, dup := keys[fi.Key]; dup {
			return nil, fmt.Errorf("item %d: duplicate key %q", i, fi.Key)
		}
		keys[fi.Key] = ids[i]
	}

	items := make([]item.Item, 0, len(fx.Items))
	for i, fi := range fx.Items {
		period, err := fi.period()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		currency := fi.Currency
		if currency == "" {
			currency = fx.Currency
		}
		if currency == "" {
			currency = "usd"
		}
		amount := types.Money{Amount: fi.Amount, Currency: currency}

		var it item.Item
		switch item.Kind(fi.Kind) {
		case item.KindCharge:
			rate := types.Money{Amount: fi.Rate, Currency: currency}
			it = item.NewCharge(ids[i], period, fi.Plan, fi.Phase, rate, amount)
		case item.KindRepair:
			target, ok := keys[fi.Target]
			if !ok {
				parsed, err := id.ParseItemID(fi.Target)
				if err != nil {
					return nil, fmt.Errorf("item %d: unknown target %q", i, fi.Target)
				}
				target = parsed
			}
			it = item.NewRepair(ids[i], period, amount, target)
		default:
			return nil, fmt.Errorf("item %d: unknown kind %q", i, fi.Kind)
		}

		it.SubscriptionID = subID
		it.CreatedAt = base.Add(time.Duration(i) * time.Second)
		items = append(items, it)
	}
	return items, nil
}

func (fi FixtureItem) period() (types.Interval, error) {
	start, err := types.ParseDate(fi.Start)
	if err != nil {
		return types.Interval{}, fmt.Errorf("start: %w", err)
	}
	end, err := types.ParseDate(fi.End)
	if err != nil {
		return types.Interval{}, fmt.Errorf("end: %w", err)
	}
	return types.NewInterval(start, end)
}

// fixtureEpoch anchors fixture creation times so runs are reproducible.
var fixtureEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
