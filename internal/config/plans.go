package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PlanTable maps billing price item identifiers to plan tier names.
type PlanTable map[string]string

var knownTiers = map[string]struct{}{
	"free":    {},
	"pro":     {},
	"premium": {},
}

// DefaultPlanTable returns the compiled-in price mapping.
func DefaultPlanTable() PlanTable {
	return PlanTable{
		"price_pro":     "pro",
		"price_premium": "premium",
	}
}

// PlanTableHolder holds the current plan table and supports hot reload.
type PlanTableHolder struct {
	current atomic.Value // holds PlanTable
}

// NewPlanTableHolder loads plans.yml and watches it for changes. A missing
// config file falls back to the compiled-in defaults.
func NewPlanTableHolder() (*PlanTableHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/courtside/config")
	v.AddConfigPath("/etc/courtside")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COURTSIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("plans.table", map[string]string(DefaultPlanTable()))
	}

	table, err := unmarshalPlanTable(v)
	if err != nil {
		return nil, err
	}

	holder := &PlanTableHolder{}
	holder.current.Store(table)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPlanTable(v)
		if err != nil {
			log.Printf("[plan-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPlanTableHolder wraps a fixed table, bypassing file watching.
func NewStaticPlanTableHolder(table PlanTable) *PlanTableHolder {
	if table == nil {
		table = DefaultPlanTable()
	}
	holder := &PlanTableHolder{}
	holder.current.Store(table)
	return holder
}

// Get returns the current plan table.
func (h *PlanTableHolder) Get() PlanTable {
	return h.current.Load().(PlanTable)
}

func unmarshalPlanTable(v *viper.Viper) (PlanTable, error) {
	var raw map[string]string
	if err := v.UnmarshalKey("plans.table", &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		raw = DefaultPlanTable()
	}
	table := make(PlanTable, len(raw))
	for priceItemID, tier := range raw {
		tier = strings.ToLower(strings.TrimSpace(tier))
		if _, ok := knownTiers[tier]; !ok {
			return nil, fmt.Errorf("plans.table[%s]: unknown tier %q", priceItemID, tier)
		}
		if strings.TrimSpace(priceItemID) == "" {
			return nil, errors.New("plans.table: empty price item id")
		}
		table[strings.TrimSpace(priceItemID)] = tier
	}
	return table, nil
}
