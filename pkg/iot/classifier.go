package iot

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/config"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

// Netatmo module type of the outdoor thermo-hygrometer.
const netatmoOutdoorModuleType = "NAModule1"

// Classify assigns a monitoring mode from substring rules. Ignore patterns win
// over poll patterns; anything unmatched is push-delivered. Patterns are
// substrings, so a short pattern such as "Hub" also matches "Hub Mini Remote".
func Classify(name string, rules config.Rules) models.MonitoringMode {
	for _, p := range rules.IgnorePatterns {
		if p != "" && strings.Contains(name, p) {
			return models.MonitoringModeIgnored
		}
	}
	for _, p := range rules.PollPatterns {
		if p != "" && strings.Contains(name, p) {
			return models.MonitoringModePolled
		}
	}
	return models.MonitoringModePushed
}

// ModeFor adjusts a classified mode to what the source can deliver. The
// secondary vendor has no push channel, so its devices are always polled.
func ModeFor(mode models.MonitoringMode, source models.Source) models.MonitoringMode {
	if mode == models.MonitoringModePushed && source == models.SourceNetatmo {
		return models.MonitoringModePolled
	}
	return mode
}

// ClassifySnapshot classifies by display name, falling back to the device id.
func ClassifySnapshot(snap models.Snapshot, rules config.Rules) models.MonitoringMode {
	name := snap.Name
	if name == "" {
		name = snap.DeviceID
	}
	return ModeFor(Classify(name, rules), snap.Source)
}

func IsOutdoor(snap models.Snapshot, rules config.Rules) bool {
	if snap.Type == models.DeviceTypeOutdoorModule || snap.ModuleType == netatmoOutdoorModuleType {
		return true
	}
	for _, kw := range rules.OutdoorKeywords {
		if kw != "" && strings.Contains(snap.Name, kw) {
			return true
		}
	}
	return false
}

// FindPatternOverlaps lists pattern pairs where one contains the other. Such
// pairs are legal but usually a mistake.
func FindPatternOverlaps(rules config.Rules) []string {
	type tagged struct {
		kind    string
		pattern string
	}
	var all []tagged
	for _, p := range rules.IgnorePatterns {
		all = append(all, tagged{"ignore", p})
	}
	for _, p := range rules.PollPatterns {
		all = append(all, tagged{"poll", p})
	}

	var overlaps []string
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.pattern == "" || b.pattern == "" {
				continue
			}
			if strings.Contains(a.pattern, b.pattern) || strings.Contains(b.pattern, a.pattern) {
				overlaps = append(overlaps, fmt.Sprintf("%s %q overlaps %s %q", a.kind, a.pattern, b.kind, b.pattern))
			}
		}
	}
	return overlaps
}

// RulesStore holds the active rules. Readers take a copy per snapshot so a
// reload applies to the next snapshot without restarting anything.
type RulesStore struct {
	v atomic.Pointer[config.Rules]
}

func NewRulesStore(rules config.Rules) *RulesStore {
	s := &RulesStore{}
	s.Set(rules)
	return s
}

func (s *RulesStore) Get() config.Rules {
	if s == nil {
		return config.DefaultRules()
	}
	if r := s.v.Load(); r != nil {
		return *r
	}
	return config.DefaultRules()
}

func (s *RulesStore) Set(rules config.Rules) {
	logger := common.GetLoggerWith(
		common.LoggerNameMonitorCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryClassifier),
	)

	for _, overlap := range FindPatternOverlaps(rules) {
		logger.Warn("Classifier patterns overlap", zap.String("overlap", overlap))
	}

	s.v.Store(&rules)
}
