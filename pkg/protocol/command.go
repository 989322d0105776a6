// Package protocol defines the grayhound agent wire format: outbound {command, args} requests,
// inbound {type, data} events and the item/outcome records both directions carry.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/grayhound-dev/grayhound/pkg/status"
)

// command names understood by the agent.
const (
	CmdScan               = "scan"
	CmdPhaseAClean        = "phase_a_clean"
	CmdPhaseBClean        = "phase_b_clean"
	CmdPhaseCClean        = "phase_c_clean"
	CmdCheckRemovalStatus = "check_removal_status"
	CmdGenerateReport     = "generate_final_report"
	CmdViewDB             = "view_db"
	CmdAddItemToDB        = "add_item_to_db"
	CmdSaveIgnoreList     = "save_ignore_list"
)

// DefaultLanguage is used when a command is built with an unsupported language.
const DefaultLanguage = "en"

var languages = map[string]bool{"en": true, "ko": true, "ja": true, "zh": true}

// Item is a removal candidate as reported by a scan.
type Item struct {
	Name       string `json:"name"`
	MaskedName string `json:"masked_name,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RiskScore  int    `json:"risk_score"`
	Path       string `json:"path,omitempty"`
	PID        *int   `json:"pid,omitempty"`
	Type       string `json:"type,omitempty"` // program or process
}

// DisplayName returns the masked name, falling back to the identity.
func (i Item) DisplayName() string {
	if i.MaskedName != "" {
		return i.MaskedName
	}
	return i.Name
}

// Outcome is the result of one removal attempt on one item.
type Outcome struct {
	Name            string         `json:"name"`
	MaskedName      string         `json:"masked_name,omitempty"`
	GuideMaskedName string         `json:"guide_masked_name,omitempty"`
	Path            string         `json:"path,omitempty"`
	Status          status.Outcome `json:"status"`
	Message         string         `json:"message,omitempty"`
	UIOpened        bool           `json:"ui_opened,omitempty"`
	ForceFailed     bool           `json:"force_failed,omitempty"`
}

// DisplayName returns the most specific masked name available.
func (o Outcome) DisplayName() string {
	switch {
	case o.GuideMaskedName != "":
		return o.GuideMaskedName
	case o.MaskedName != "":
		return o.MaskedName
	default:
		return o.Name
	}
}

// Command is one outbound request. Args are positional strings; structured
// arguments are JSON-encoded into a single string, as the agent expects.
type Command struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// String returns a short loggable form, without args payloads.
func (c Command) String() string {
	return fmt.Sprintf("%s(%d args)", c.Command, len(c.Args))
}

// ScanCommand builds a scan request. ignored names are excluded by the agent,
// minRisk is the minimum risk score (0-10) to report.
func ScanCommand(ignored []string, minRisk int) (Command, error) {
	if ignored == nil {
		ignored = []string{}
	}
	filter, err := json.Marshal(ignored)
	if err != nil {
		return Command{}, fmt.Errorf("marshal scan filter: %w", err)
	}
	return Command{Command: CmdScan, Args: []string{string(filter), strconv.Itoa(minRisk)}}, nil
}

// PhaseCommand builds a phase_a_clean, phase_b_clean or phase_c_clean request.
func PhaseCommand(name string, items []Item, language string) (Command, error) {
	switch name {
	case CmdPhaseAClean, CmdPhaseBClean, CmdPhaseCClean:
	default:
		return Command{}, fmt.Errorf("not a phase command: %q", name)
	}
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return Command{}, fmt.Errorf("marshal %s items: %w", name, err)
	}
	return Command{Command: name, Args: []string{string(data), NormalizeLanguage(language)}}, nil
}

// CheckRemovalCommand builds a check_removal_status request. a single name is sent as a
// JSON string, several names as a JSON array.
func CheckRemovalCommand(names ...string) (Command, error) {
	if len(names) == 0 {
		return Command{}, errors.New("check removal: no names")
	}
	var payload any = names
	if len(names) == 1 {
		payload = names[0]
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("marshal removal check: %w", err)
	}
	return Command{Command: CmdCheckRemovalStatus, Args: []string{string(data)}}, nil
}

// ReportCommand builds a generate_final_report request from the final outcome set.
func ReportCommand(results []Outcome, language string) (Command, error) {
	if results == nil {
		results = []Outcome{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return Command{}, fmt.Errorf("marshal report results: %w", err)
	}
	return Command{Command: CmdGenerateReport, Args: []string{string(data), NormalizeLanguage(language)}}, nil
}

// ViewDBCommand requests the agent's catalog of known bloatware.
func ViewDBCommand() Command {
	return Command{Command: CmdViewDB}
}

// AddItemCommand asks the agent to evaluate a program and add it to its catalog.
func AddItemCommand(name string) Command {
	return Command{Command: CmdAddItemToDB, Args: []string{name}}
}

// SaveIgnoreListCommand sends the ignore list to the agent.
func SaveIgnoreListCommand(names []string) (Command, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return Command{}, fmt.Errorf("marshal ignore list: %w", err)
	}
	return Command{Command: CmdSaveIgnoreList, Args: []string{string(data)}}, nil
}

// NormalizeLanguage lowercases the language code and falls back to DefaultLanguage
// for anything the agent does not produce reports in.
func NormalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if languages[lang] {
		return lang
	}
	return DefaultLanguage
}
