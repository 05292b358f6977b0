package iot

import (
	"strings"

	"liyu1981.xyz/home-state-monitor/pkg/models"
)

const (
	anyDeviceType models.DeviceType = "*"
	anyValue                        = "*"
)

type messageKey struct {
	deviceType models.DeviceType
	field      string
	value      string
}

// phrase is a message template. silent marks transitions that are recorded
// but never announced, such as motion clearing.
type phrase struct {
	text   string
	silent bool
}

type localeTable struct {
	titles  map[models.Channel]string
	generic string
	phrases map[messageKey]phrase
}

var messageTables = map[string]localeTable{
	"ja": {
		titles: map[models.Channel]string{
			models.ChannelSecurity: "セキュリティ通知",
			models.ChannelUpdate:   "センサー更新",
		},
		generic: "{device} の状態が変化しました: {field} {prev} → {new}",
		phrases: map[messageKey]phrase{
			{models.DeviceTypeLock, models.FieldLockStatus, "locked"}:   {text: "🔒 {device} が施錠されました"},
			{models.DeviceTypeLock, models.FieldLockStatus, "unlocked"}: {text: "🔓 {device} が解錠されました"},
			{models.DeviceTypeLock, models.FieldLockStatus, "jammed"}:   {text: "⚠️ {device} がジャム状態です"},
			{anyDeviceType, models.FieldContact, "open"}:                {text: "🚪 {device} が開きました"},
			{anyDeviceType, models.FieldContact, "closed"}:              {text: "🚪 {device} が閉まりました"},
			{anyDeviceType, models.FieldContact, "open_timeout"}:        {text: "⚠️ {device} が開いたままです"},
			{anyDeviceType, models.FieldMotion, "true"}:                 {text: "👁 {device} が動きを検知しました"},
			{anyDeviceType, models.FieldMotion, "false"}:                {silent: true},
			{anyDeviceType, models.FieldDoorbell, anyValue}:             {text: "🔔 {device} が押されました"},
			{anyDeviceType, models.FieldBattery, anyValue}:              {text: "🪫 {device} の電池残量が少なくなっています ({new}%)"},
			{anyDeviceType, models.FieldTemperature, anyValue}:          {text: "🌡 {device} の温度: {prev}℃ → {new}℃"},
			{anyDeviceType, models.FieldHumidity, anyValue}:             {text: "💧 {device} の湿度: {prev}% → {new}%"},
			{anyDeviceType, models.FieldCO2, anyValue}:                  {text: "🫧 {device} のCO2濃度: {prev}ppm → {new}ppm"},
			{anyDeviceType, models.FieldPressure, anyValue}:             {text: "{device} の気圧: {prev}hPa → {new}hPa"},
			{anyDeviceType, models.FieldNoise, anyValue}:                {text: "{device} の騒音: {prev}dB → {new}dB"},
		},
	},
	"en": {
		titles: map[models.Channel]string{
			models.ChannelSecurity: "Security",
			models.ChannelUpdate:   "Sensor update",
		},
		generic: "{device} changed: {field} {prev} → {new}",
		phrases: map[messageKey]phrase{
			{models.DeviceTypeLock, models.FieldLockStatus, "locked"}:   {text: "🔒 {device} was locked"},
			{models.DeviceTypeLock, models.FieldLockStatus, "unlocked"}: {text: "🔓 {device} was unlocked"},
			{models.DeviceTypeLock, models.FieldLockStatus, "jammed"}:   {text: "⚠️ {device} is jammed"},
			{anyDeviceType, models.FieldContact, "open"}:                {text: "🚪 {device} opened"},
			{anyDeviceType, models.FieldContact, "closed"}:              {text: "🚪 {device} closed"},
			{anyDeviceType, models.FieldContact, "open_timeout"}:        {text: "⚠️ {device} has been left open"},
			{anyDeviceType, models.FieldMotion, "true"}:                 {text: "👁 {device} detected motion"},
			{anyDeviceType, models.FieldMotion, "false"}:                {silent: true},
			{anyDeviceType, models.FieldDoorbell, anyValue}:             {text: "🔔 {device} was pressed"},
			{anyDeviceType, models.FieldBattery, anyValue}:              {text: "🪫 {device} battery is low ({new}%)"},
			{anyDeviceType, models.FieldTemperature, anyValue}:          {text: "🌡 {device} temperature: {prev}°C → {new}°C"},
			{anyDeviceType, models.FieldHumidity, anyValue}:             {text: "💧 {device} humidity: {prev}% → {new}%"},
			{anyDeviceType, models.FieldCO2, anyValue}:                  {text: "🫧 {device} CO2: {prev}ppm → {new}ppm"},
			{anyDeviceType, models.FieldPressure, anyValue}:             {text: "{device} pressure: {prev}hPa → {new}hPa"},
			{anyDeviceType, models.FieldNoise, anyValue}:                {text: "{device} noise: {prev}dB → {new}dB"},
		},
	},
}

func tableFor(locale string) localeTable {
	if t, ok := messageTables[locale]; ok {
		return t
	}
	return messageTables["ja"]
}

// lookup tries the most specific key first: exact type and value, then any
// type, then any value.
func (t localeTable) lookup(ev models.StateChangeEvent) (phrase, bool) {
	keys := []messageKey{
		{ev.DeviceType, ev.Field, ev.NewValue},
		{anyDeviceType, ev.Field, ev.NewValue},
		{ev.DeviceType, ev.Field, anyValue},
		{anyDeviceType, ev.Field, anyValue},
	}
	for _, k := range keys {
		if p, ok := t.phrases[k]; ok {
			return p, true
		}
	}
	return phrase{}, false
}

func (t localeTable) render(text string, ev models.StateChangeEvent) string {
	prev := ev.PreviousValue
	if prev == "" {
		prev = "-"
	}
	return strings.NewReplacer(
		"{device}", ev.DeviceName,
		"{field}", ev.Field,
		"{prev}", prev,
		"{new}", ev.NewValue,
	).Replace(text)
}

// Describe renders the message for ev, falling back to the generic template
// for combinations without a phrase. Silent phrases also fall back so the
// read API can still show them.
func (t localeTable) describe(ev models.StateChangeEvent) string {
	if p, ok := t.lookup(ev); ok && !p.silent {
		return t.render(p.text, ev)
	}
	return t.render(t.generic, ev)
}
