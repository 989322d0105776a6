// Package catalog is the client for the agent's bloatware catalog: listing known entries,
// asking the agent to evaluate and add a program, and saving the user's ignore list.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/grayhound-dev/grayhound/pkg/protocol"
)

// MinNameLength is the shortest program name the agent accepts for evaluation.
const MinNameLength = 3

// validation errors for Add.
var (
	ErrNameTooShort = errors.New("program name too short")
	ErrProtected    = errors.New("protected system name")
)

// protectedKeywords can never be added; names containing any of them are rejected locally.
var protectedKeywords = []string{
	"system32", "windows", "explorer.exe", "svchost.exe", "wininit.exe",
	"lsass.exe", "services.exe", "smss.exe", "csrss.exe", "winlogon.exe",
	"drivers", "config", "microsoft", "nvidia", "intel", "amd", "google",
	"system volume information", "$recycle.bin", "pagefile.sys", "hiberfil.sys",
}

// Sender transmits one command to the agent.
type Sender interface {
	Send(cmd protocol.Command) error
}

// Catalog keeps the last catalog listing received from the agent.
type Catalog struct {
	mu       sync.Mutex
	sender   Sender
	entries  []protocol.CatalogEntry
	pending  bool
	lastErr  string
	onUpdate func([]protocol.CatalogEntry)
}

// New makes a catalog client sending through sender.
func New(sender Sender) *Catalog {
	return &Catalog{sender: sender}
}

// Attach replaces the transport.
func (c *Catalog) Attach(sender Sender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

// OnUpdate registers a callback fired with a copy of the entries on every listing.
func (c *Catalog) OnUpdate(fn func([]protocol.CatalogEntry)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Refresh requests the catalog listing.
func (c *Catalog) Refresh() error {
	return c.send(protocol.ViewDBCommand())
}

// Add asks the agent to evaluate name and add it to the catalog.
func (c *Catalog) Add(name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("add %q: %w", name, err)
	}
	return c.send(protocol.AddItemCommand(name))
}

// SaveIgnoreList sends the ignore list to the agent.
func (c *Catalog) SaveIgnoreList(names []string) error {
	cmd, err := protocol.SaveIgnoreListCommand(names)
	if err != nil {
		return fmt.Errorf("save ignore list: %w", err)
	}
	return c.send(cmd)
}

func (c *Catalog) send(cmd protocol.Command) error {
	c.mu.Lock()
	sender := c.sender
	c.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("%s: no connection", cmd.Command)
	}
	// marked before sending, the answer may arrive before Send returns
	c.mu.Lock()
	c.pending = true
	c.lastErr = ""
	c.mu.Unlock()
	if err := sender.Send(cmd); err != nil {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", cmd.Command, err)
	}
	return nil
}

// Pending reports whether a catalog request is waiting for its listing or error.
func (c *Catalog) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Handle consumes db_list and error events. returns false for anything else.
func (c *Catalog) Handle(ev protocol.Event) bool {
	switch ev.Type {
	case protocol.EventDBList:
		c.mu.Lock()
		c.entries = slices.Clone(ev.Catalog)
		c.pending = false
		c.lastErr = ""
		fn := c.onUpdate
		entries := slices.Clone(c.entries)
		c.mu.Unlock()
		if fn != nil {
			fn(entries)
		}
		return true
	case protocol.EventError:
		c.mu.Lock()
		c.pending = false
		c.lastErr = ev.Text
		c.mu.Unlock()
		return true
	default:
		return false
	}
}

// Entries returns a copy of the last listing.
func (c *Catalog) Entries() []protocol.CatalogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.entries)
}

// LastError returns the last agent error reported for a catalog request.
func (c *Catalog) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Ignored returns the names marked ignored in the last listing.
func (c *Catalog) Ignored() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var res []string
	for _, e := range c.entries {
		if e.Ignored {
			res = append(res, e.Name)
		}
	}
	return res
}

// ValidateName rejects names the agent would refuse: too short or naming a protected system component.
func ValidateName(name string) error {
	if len([]rune(strings.TrimSpace(name))) < MinNameLength {
		return ErrNameTooShort
	}
	lower := strings.ToLower(name)
	for _, kw := range protectedKeywords {
		if strings.Contains(lower, kw) {
			return fmt.Errorf("%w: contains %q", ErrProtected, kw)
		}
	}
	return nil
}
