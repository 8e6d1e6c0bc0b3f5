package settings

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"stickbridge/internal/convert"
	"stickbridge/internal/mapping"
)

// XML rule files use the element-per-rule schema:
//
//	<Mappings>
//	  <StickMappings>
//	    <StickName>T.16000M</StickName>
//	    <AxisToVectorComponent>
//	      <InputAxis>X</InputAxis><Invert>false</Invert>
//	      <OutputDevice>Stick</OutputDevice><OutputComponent>Roll</OutputComponent>
//	    </AxisToVectorComponent>
//	  </StickMappings>
//	</Mappings>
//
// Vector rules without an OutputSet write to the set named after their
// output device. Without an OutputSet, AxisToFloat writes to "Value" and
// ButtonToFloat to "Trigger", so a throttle axis and a trigger button on the
// same output device never share a slot.

// xmlTriggerSet is the default set for ButtonToFloat rules.
const xmlTriggerSet = "Trigger"

type xmlMappings struct {
	XMLName xml.Name   `xml:"Mappings"`
	Sticks  []xmlStick `xml:"StickMappings"`
}

type xmlStick struct {
	StickName      string              `xml:"StickName"`
	AxisToVector   []xmlAxisToVector   `xml:"AxisToVectorComponent"`
	AxisToFloat    []xmlAxisToFloat    `xml:"AxisToFloat"`
	ButtonToVector []xmlButtonToVector `xml:"ButtonToVectorComponent"`
	ButtonToFloat  []xmlButtonToFloat  `xml:"ButtonToFloat"`
	ButtonToButton []xmlButtonToButton `xml:"ButtonToButton"`
	PovToTouchpad  []xmlPovToTouchpad  `xml:"PovToTouchpad"`
}

type xmlAxisToVector struct {
	InputAxis       string `xml:"InputAxis"`
	Invert          bool   `xml:"Invert"`
	OutputDevice    string `xml:"OutputDevice"`
	OutputSet       string `xml:"OutputSet"`
	OutputComponent string `xml:"OutputComponent"`
}

type xmlAxisToFloat struct {
	InputAxis    string `xml:"InputAxis"`
	Invert       bool   `xml:"Invert"`
	OutputDevice string `xml:"OutputDevice"`
	OutputSet    string `xml:"OutputSet"`
	MappingRange string `xml:"MappingRange"`
}

type xmlButtonToVector struct {
	InputButton     int     `xml:"InputButton"`
	OutputDevice    string  `xml:"OutputDevice"`
	OutputSet       string  `xml:"OutputSet"`
	OutputComponent string  `xml:"OutputComponent"`
	Direction       float64 `xml:"Direction"`
	ReleaseValue    float64 `xml:"ReleaseValue"`
}

type xmlButtonToFloat struct {
	InputButton  int     `xml:"InputButton"`
	OutputDevice string  `xml:"OutputDevice"`
	OutputSet    string  `xml:"OutputSet"`
	PressValue   float64 `xml:"PressValue"`
	ReleaseValue float64 `xml:"ReleaseValue"`
}

type xmlButtonToButton struct {
	InputButton  int    `xml:"InputButton"`
	OutputDevice string `xml:"OutputDevice"`
	OutputButton string `xml:"OutputButton"`
}

type xmlPovToTouchpad struct {
	InputPov     int    `xml:"InputPov"`
	OutputDevice string `xml:"OutputDevice"`
	OutputSet    string `xml:"OutputSet"`
}

func parseXML(data []byte) (*mapping.RuleSet, error) {
	var doc xmlMappings
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	rs := &mapping.RuleSet{Devices: make([]mapping.DeviceRules, 0, len(doc.Sticks))}
	for _, s := range doc.Sticks {
		dr := mapping.DeviceRules{Device: s.StickName}

		for _, m := range s.AxisToVector {
			dr.Rules = append(dr.Rules, mapping.AxisToVectorComponent{
				Input:           m.InputAxis,
				Invert:          m.Invert,
				OutputDevice:    m.OutputDevice,
				OutputSet:       orDefault(m.OutputSet, m.OutputDevice),
				OutputComponent: m.OutputComponent,
			})
		}
		for _, m := range s.AxisToFloat {
			r, err := convert.ParseRange(m.MappingRange)
			if err != nil {
				return nil, &mapping.ConfigurationError{Device: s.StickName, Kind: "AxisToFloat", Input: m.InputAxis, Err: err}
			}
			dr.Rules = append(dr.Rules, mapping.AxisToScalar{
				Input:        m.InputAxis,
				Invert:       m.Invert,
				OutputDevice: m.OutputDevice,
				OutputSet:    m.OutputSet,
				Range:        r,
			})
		}
		for _, m := range s.ButtonToVector {
			dr.Rules = append(dr.Rules, mapping.ButtonToVectorComponent{
				Input:           strconv.Itoa(m.InputButton),
				OutputDevice:    m.OutputDevice,
				OutputSet:       orDefault(m.OutputSet, m.OutputDevice),
				OutputComponent: m.OutputComponent,
				PressValue:      m.Direction,
				ReleaseValue:    m.ReleaseValue,
			})
		}
		for _, m := range s.ButtonToFloat {
			dr.Rules = append(dr.Rules, mapping.ButtonToScalar{
				Input:        strconv.Itoa(m.InputButton),
				OutputDevice: m.OutputDevice,
				OutputSet:    orDefault(m.OutputSet, xmlTriggerSet),
				PressValue:   m.PressValue,
				ReleaseValue: m.ReleaseValue,
			})
		}
		for _, m := range s.ButtonToButton {
			dr.Rules = append(dr.Rules, mapping.ButtonToButton{
				Input:        strconv.Itoa(m.InputButton),
				OutputDevice: m.OutputDevice,
				OutputButton: m.OutputButton,
			})
		}
		for _, m := range s.PovToTouchpad {
			dr.Rules = append(dr.Rules, mapping.PovToTouchpad{
				Input:        strconv.Itoa(m.InputPov),
				OutputDevice: m.OutputDevice,
				OutputSet:    m.OutputSet,
			})
		}

		rs.Devices = append(rs.Devices, dr)
	}
	return rs, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
