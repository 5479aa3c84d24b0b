// Package model defines the value types shared across the resolution pipeline.
package model

import "time"

// Stage identifies one of the sequential resolution phases for a locality.
type Stage string

const (
	StageNames     Stage = "names"
	StageWebsites  Stage = "websites"
	StageContacts  Stage = "contacts"
	StageCompleted Stage = "completed"
)

// StageStatus is the outcome of the most recently attempted stage.
type StageStatus string

const (
	StageStatusNotStarted  StageStatus = "not_started"
	StageStatusCompleted   StageStatus = "completed"
	StageStatusInterrupted StageStatus = "interrupted"
)

// Organization is one resolved accommodation business. Fields are filled in
// incrementally as stages complete; Merge never overwrites a non-empty field
// with an empty one.
type Organization struct {
	Name    string `json:"name"`
	Website string `json:"website"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
}

// Merge copies non-empty fields from other into o without clearing anything
// already set.
func (o *Organization) Merge(other Organization) {
	if o.Website == "" && other.Website != "" {
		o.Website = other.Website
	}
	if o.Email == "" && other.Email != "" {
		o.Email = other.Email
	}
	if o.Phone == "" && other.Phone != "" {
		o.Phone = other.Phone
	}
	if o.Address == "" && other.Address != "" {
		o.Address = other.Address
	}
}

// ProcessStatus tracks per-stage completion for one locality.
type ProcessStatus struct {
	NamesFound         bool        `json:"names_found"`
	WebsitesFound      bool        `json:"websites_found"`
	ContactsExtracted  bool        `json:"contacts_extracted"`
	LastCompletedStage Stage       `json:"last_completed_stage,omitempty"`
	LastStageStatus    StageStatus `json:"last_stage_status"`
}

// CacheData is the sole persisted unit: the full resolution state for the
// one currently active locality.
type CacheData struct {
	CurrentLocation string         `json:"current_location"`
	LastUpdate      time.Time      `json:"last_update"`
	ProcessStatus   ProcessStatus  `json:"process_status"`
	Organizations   []Organization `json:"organizations"`
}

// NextStage returns the first incomplete stage, checking the completion
// flags in their fixed order.
func (c *CacheData) NextStage() Stage {
	switch {
	case !c.ProcessStatus.NamesFound:
		return StageNames
	case !c.ProcessStatus.WebsitesFound:
		return StageWebsites
	case !c.ProcessStatus.ContactsExtracted:
		return StageContacts
	default:
		return StageCompleted
	}
}

// UpdateStage records the outcome of a stage attempt. Only an explicit
// completed signal marks the stage done; an interrupted signal is recorded
// but never rolls back a previously completed stage.
func (c *CacheData) UpdateStage(stage Stage, status StageStatus) {
	done := status == StageStatusCompleted
	switch stage {
	case StageNames:
		if done {
			c.ProcessStatus.NamesFound = true
		}
	case StageWebsites:
		if done {
			c.ProcessStatus.WebsitesFound = true
		}
	case StageContacts:
		if done {
			c.ProcessStatus.ContactsExtracted = true
		}
	}
	if done {
		c.ProcessStatus.LastCompletedStage = stage
	} else {
		c.ProcessStatus.LastCompletedStage = ""
	}
	c.ProcessStatus.LastStageStatus = status
}
