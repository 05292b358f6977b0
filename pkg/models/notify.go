package models

import "time"

type Channel string

const (
	ChannelSecurity Channel = "security"
	ChannelUpdate   Channel = "update"
)

func ChannelFor(class EventClass) Channel {
	if class == EventClassSecurity {
		return ChannelSecurity
	}
	return ChannelUpdate
}

// Message is what a delivery collaborator posts to a channel.
type Message struct {
	Title    string
	Text     string
	ImageURL string
}

type ChartKind string

const (
	ChartOutdoorTemperature ChartKind = "outdoor_temperature"
	ChartOutdoorHumidity    ChartKind = "outdoor_humidity"
	ChartIndoorTemperature  ChartKind = "indoor_temperature"
	ChartIndoorHumidity     ChartKind = "indoor_humidity"
	ChartIndoorCO2          ChartKind = "indoor_co2"
)

type Point struct {
	At    time.Time
	Value float64
}

type Series struct {
	DeviceID string
	Label    string
	Color    string
	Points   []Point
}

// Annotation is a horizontal reference line drawn over a chart.
type Annotation struct {
	Value float64
	Label string
	Color string
}

type ChartRequest struct {
	Kind        ChartKind
	Title       string
	Unit        string
	Series      []Series
	Annotations []Annotation
}
