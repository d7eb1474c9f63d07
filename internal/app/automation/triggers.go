package automation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Trigger names a fixed point in the calendar at which jobs run.
type Trigger string

const (
	TriggerJan1    Trigger = "annual-jan1"
	TriggerMar1    Trigger = "annual-mar1"
	TriggerApr1    Trigger = "annual-apr1"
	TriggerNightly Trigger = "nightly"
)

type anchor struct {
	month time.Month
	day   int
}

var annualAnchors = []struct {
	trigger Trigger
	anchor  anchor
}{
	{TriggerJan1, anchor{time.January, 1}},
	{TriggerMar1, anchor{time.March, 1}},
	{TriggerApr1, anchor{time.April, 1}},
}

// ErrTriggerNotDue is reported when a trigger is run on a day it does not fire.
var ErrTriggerNotDue = errors.New("automation: trigger not due today")

// AllTriggers lists every trigger.
var AllTriggers = []Trigger{TriggerJan1, TriggerMar1, TriggerApr1, TriggerNightly}

// Annual reports whether the trigger fires once a year.
func (t Trigger) Annual() bool {
	return t != TriggerNightly && t.Valid()
}

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	for _, candidate := range AllTriggers {
		if t == candidate {
			return true
		}
	}
	return false
}

// ParseTrigger converts a name such as "annual-jan1" into a Trigger.
func ParseTrigger(value string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", fmt.Errorf("automation: unknown trigger %q", value)
	}
	return t, nil
}

// TriggersDueOn returns the triggers that fire on date's calendar day in
// date's location. Annual triggers come first; nightly is always last.
func TriggersDueOn(date time.Time) []Trigger {
	var due []Trigger
	for _, a := range annualAnchors {
		if date.Month() == a.anchor.month && date.Day() == a.anchor.day {
			due = append(due, a.trigger)
		}
	}
	return append(due, TriggerNightly)
}

// DueOn reports whether t fires on date's calendar day.
func (t Trigger) DueOn(date time.Time) bool {
	for _, due := range TriggersDueOn(date) {
		if due == t {
			return true
		}
	}
	return false
}
