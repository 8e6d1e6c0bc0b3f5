package main

import (
	"strings"
	"testing"

	"stickbridge/internal/mapping"
)

func TestEventEnvelopeRoundTrip(t *testing.T) {
	events := []Event{
		SetPolling{Enabled: true},
		SetPolling{Enabled: false},
		InjectSample{Device: "Stick1", Input: "Buttons3", Value: 128},
		InjectSample{Device: "Throttle", Input: "Sliders0", Value: 0},
		RequestSnapshot{},
	}
	for _, ev := range events {
		data, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent(%#v): %v", ev, err)
		}
		got, err := UnmarshalEvent(data)
		if err != nil {
			t.Fatalf("UnmarshalEvent(%s): %v", data, err)
		}
		if got != ev {
			t.Fatalf("round trip = %#v, want %#v", got, ev)
		}
	}
}

func TestUnmarshalEventWireFormat(t *testing.T) {
	ev, err := UnmarshalEvent([]byte(`{"type":"inject_sample","data":{"device":"Stick1","input":"x","value":32767}}`))
	if err != nil {
		t.Fatalf("UnmarshalEvent: %v", err)
	}
	inj, ok := ev.(InjectSample)
	if !ok {
		t.Fatalf("event = %T, want InjectSample", ev)
	}
	s, err := inj.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if s != (mapping.Sample{Offset: mapping.OffsetX, Value: 32767}) {
		t.Fatalf("sample = %+v", s)
	}
}

func TestUnmarshalEventErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"not json", `nope`, "unmarshal envelope"},
		{"unknown type", `{"type":"fire_missiles"}`, "unknown event type"},
		{"bad data", `{"type":"set_polling","data":{"enabled":"yes"}}`, "unmarshal SetPolling"},
		{"no device", `{"type":"inject_sample","data":{"input":"X","value":1}}`, "device is required"},
		{"bad input", `{"type":"inject_sample","data":{"device":"S","input":"Buttons999","value":1}}`, "inject_sample"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestMarshalEventRejectsUnknown(t *testing.T) {
	type bogus struct{ SetPolling }
	if _, err := MarshalEvent(bogus{}); err == nil {
		t.Fatalf("MarshalEvent accepted %T", bogus{})
	}
}
