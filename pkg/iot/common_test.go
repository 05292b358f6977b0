package iot

import (
	"bufio"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"liyu1981.xyz/home-state-monitor/pkg/config"
	"liyu1981.xyz/home-state-monitor/pkg/db"
	"liyu1981.xyz/home-state-monitor/pkg/iot/mocks"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

var testRulesFixture = config.Rules{
	IgnorePatterns:  []string{"Hub", "リモコン"},
	PollPatterns:    []string{"温湿度計", "CO2"},
	OutdoorKeywords: []string{"屋外", "Outdoor"},
	Notify:          config.DefaultRules().Notify,
}

// GetMockIOTWithMemorySqliteDialector builds an IOT on its own memory database.
// With useMockNotifier the returned notifier mock receives every transition;
// otherwise the real router and a dispatcher posting to the returned poster
// mock are wired in.
func GetMockIOTWithMemorySqliteDialector(t *testing.T, useMockNotifier bool) (
	*gomock.Controller,
	*IOT,
	*mocks.MockINotifier,
	*mocks.MockPoster,
) {
	ctrl := gomock.NewController(t)

	mockINotifier := mocks.NewMockINotifier(ctrl)
	mockPoster := mocks.NewMockPoster(ctrl)

	dbInstance, err := db.Open(db.UseNamedMemorySqliteDialector(uuid.NewString()))
	require.NoError(t, err)

	rules := NewRulesStore(testRulesFixture)
	iotInstance := &IOT{
		Db:         *dbInstance,
		Rules:      rules,
		Router:     NewRouter("en", rules),
		Dispatcher: NewDispatcher(mockPoster, 16),
	}

	notifierService := iotInstance.GetINotifier()
	if useMockNotifier {
		notifierService = mockINotifier
	}

	iotInstance.WithServices(ServiceOpts{
		Ingest:   iotInstance.GetIIngest(),
		State:    iotInstance.GetIState(),
		Notifier: notifierService,
	})

	return ctrl, iotInstance, mockINotifier, mockPoster
}

func ParseLogs(r io.Reader) []any {
	scanner := bufio.NewScanner(r)
	var logs []any

	for scanner.Scan() {
		line := scanner.Text()
		var j any
		if err := json.Unmarshal([]byte(line), &j); err == nil {
			logs = append(logs, j)
		}
	}
	return logs
}

func findLog(logs []any, match func(map[string]any) bool) bool {
	for _, log := range logs {
		lobj, ok := log.(map[string]any)
		if ok && match(lobj) {
			return true
		}
	}
	return false
}

func snapshotAt(id, name string, typ models.DeviceType, at time.Time, fields map[string]any) models.Snapshot {
	return models.Snapshot{
		DeviceID:   id,
		Name:       name,
		Type:       typ,
		Source:     models.SourceSwitchBot,
		ObservedAt: at,
		Fields:     fields,
	}
}

func ptr(v float64) *float64 {
	return &v
}
