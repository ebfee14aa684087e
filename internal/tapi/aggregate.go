package tapi

import (
	"sort"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"

	"github.com/ralt/sdkgen/internal/models"
)

type entry struct {
	info    models.DylibInfo
	symbols map[models.Symbol]struct{}
	targets map[models.Target]struct{}
}

// Aggregator merges per-image dylib records into one record per install name
type Aggregator struct {
	tree *redblacktree.Tree
}

// NewAggregator returns an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{tree: redblacktree.NewWith(utils.StringComparator)}
}

// Add merges records into the aggregate. Symbol and target sets are unioned;
// versions and timestamp are taken from the last record added.
func (a *Aggregator) Add(records ...*models.DylibInfo) {
	for _, rec := range records {
		var e *entry
		if v, found := a.tree.Get(rec.InstallName); found {
			e = v.(*entry)
			if e.info.CurrentVersion != rec.CurrentVersion {
				logrus.Warnf("%s: current version %#x overrides %#x", rec.InstallName, rec.CurrentVersion, e.info.CurrentVersion)
			}
		} else {
			e = &entry{
				symbols: make(map[models.Symbol]struct{}),
				targets: make(map[models.Target]struct{}),
			}
			e.info.InstallName = rec.InstallName
			a.tree.Put(rec.InstallName, e)
		}

		e.info.Timestamp = rec.Timestamp
		e.info.CurrentVersion = rec.CurrentVersion
		e.info.CompatibilityVersion = rec.CompatibilityVersion

		for _, s := range rec.Symbols {
			e.symbols[s] = struct{}{}
		}
		for _, t := range rec.Targets {
			e.targets[t] = struct{}{}
		}
	}
}

// Len returns the number of distinct install names seen
func (a *Aggregator) Len() int {
	return a.tree.Size()
}

// Dylibs returns the merged records ordered by install name, with sorted
// symbol and target lists.
func (a *Aggregator) Dylibs() []*models.DylibInfo {
	out := make([]*models.DylibInfo, 0, a.tree.Size())
	it := a.tree.Iterator()
	for it.Next() {
		e := it.Value().(*entry)
		info := e.info

		info.Symbols = make([]models.Symbol, 0, len(e.symbols))
		for s := range e.symbols {
			info.Symbols = append(info.Symbols, s)
		}
		sort.Slice(info.Symbols, func(i, j int) bool {
			si, sj := info.Symbols[i], info.Symbols[j]
			if si.Name != sj.Name {
				return si.Name < sj.Name
			}
			return models.CompareTargets(si.Target(), sj.Target()) < 0
		})

		info.Targets = make([]models.Target, 0, len(e.targets))
		for t := range e.targets {
			info.Targets = append(info.Targets, t)
		}
		sort.Slice(info.Targets, func(i, j int) bool {
			return models.CompareTargets(info.Targets[i], info.Targets[j]) < 0
		})

		out = append(out, &info)
	}
	return out
}
