package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/classver/internal/model"
	"github.com/roach88/classver/internal/txn"
)

// Script is a sequence of transactions against one history store.
type Script struct {
	// Name uniquely identifies this script. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this script exercises.
	Description string `yaml:"description"`

	// CommitMode is "node" (default) or "object".
	CommitMode string `yaml:"commit_mode,omitempty"`

	// Properties feed the purge policy, keyed by dotted property name.
	Properties map[string]string `yaml:"properties,omitempty"`

	Transactions []Transaction `yaml:"transactions"`

	// Assertions are evaluated after the last transaction.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Transaction is either a list of steps ended by End, or a history Action.
type Transaction struct {
	Steps []Step `yaml:"steps,omitempty"`

	// End is "commit" (default) or "rollback".
	End string `yaml:"end,omitempty"`

	// Action is "initialize", "restore" or "purge".
	Action string `yaml:"action,omitempty"`

	// Root is the classification an Action applies to.
	Root string `yaml:"root,omitempty"`

	// ExpectError is the error code a step, the commit or the action must
	// fail with. The transaction is rolled back when it does.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step is one change to the live tree.
type Step struct {
	Op     string        `yaml:"op"`
	Root   string        `yaml:"root"`
	ID     string        `yaml:"id,omitempty"`
	Parent string        `yaml:"parent,omitempty"`
	Index  *int          `yaml:"index,omitempty"`
	Labels []model.Label `yaml:"labels,omitempty"`
}

// Assertion validates the history after the script has run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Root string `yaml:"root"`

	// ID selects a category below Root; empty means the root.
	// Deleted categories are addressed through Path.
	ID string `yaml:"id,omitempty"`

	// Path lists the ancestor chain below the root for nodes no longer in
	// the live tree, e.g. [blue, navy].
	Path []string `yaml:"path,omitempty"`

	// Rev selects a revision; 0 means the head.
	Rev int64 `yaml:"rev,omitempty"`

	// Children is the expected child id order (used by children).
	Children []string `yaml:"children,omitempty"`

	// Reasons is the expected reason sequence (used by history).
	Reasons []string `yaml:"reasons,omitempty"`

	// Contains is the expected substring (used by document_contains).
	Contains string `yaml:"contains,omitempty"`

	// Code is the expected error code (used by retrieve_error).
	Code string `yaml:"code,omitempty"`
}

// Step operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpMove   = "move"
	OpRepair = "repair"
)

// Transaction endings and actions.
const (
	EndCommit   = "commit"
	EndRollback = "rollback"

	ActionInitialize = "initialize"
	ActionRestore    = "restore"
	ActionPurge      = "purge"
)

// Assertion types.
const (
	AssertChildren         = "children"
	AssertHistory          = "history"
	AssertDocumentContains = "document_contains"
	AssertRetrieveError    = "retrieve_error"
)

var errorCodes = map[string]bool{
	string(model.ErrCodeNotFound):      true,
	string(model.ErrCodeDeleted):       true,
	string(model.ErrCodeUninitialized): true,
	string(model.ErrCodeStructural):    true,
	string(model.ErrCodePersistence):   true,
	string(model.ErrCodeIllegalState):  true,
	string(model.ErrCodePurgeDenied):   true,
}

// LoadScript reads and parses a script YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses and validates script YAML.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScript(&script); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

// validateScript checks that required fields are present and valid.
func validateScript(s *Script) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := txn.ParseMode(s.CommitMode); err != nil {
		return err
	}
	if len(s.Transactions) == 0 {
		return fmt.Errorf("transactions list is required and must be non-empty")
	}

	for i, tx := range s.Transactions {
		if err := validateTransaction(i, &tx); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateTransaction(index int, tx *Transaction) error {
	if tx.ExpectError != "" && !errorCodes[tx.ExpectError] {
		return fmt.Errorf("transactions[%d]: unknown error code %q", index, tx.ExpectError)
	}

	if tx.Action != "" {
		if len(tx.Steps) > 0 {
			return fmt.Errorf("transactions[%d]: action and steps are mutually exclusive", index)
		}
		switch tx.Action {
		case ActionInitialize, ActionRestore, ActionPurge:
		default:
			return fmt.Errorf("transactions[%d]: unknown action %q", index, tx.Action)
		}
		if tx.Root == "" {
			return fmt.Errorf("transactions[%d]: root is required for %s", index, tx.Action)
		}
		return nil
	}

	switch tx.End {
	case "", EndCommit, EndRollback:
	default:
		return fmt.Errorf("transactions[%d]: end must be commit or rollback, got %q", index, tx.End)
	}
	for j, step := range tx.Steps {
		if err := validateStep(&step); err != nil {
			return fmt.Errorf("transactions[%d].steps[%d]: %w", index, j, err)
		}
	}
	return nil
}

func validateStep(s *Step) error {
	if s.Root == "" {
		return fmt.Errorf("root is required")
	}
	switch s.Op {
	case OpCreate, OpUpdate, OpDelete, OpRepair:
	case OpMove:
		if s.ID == "" {
			return fmt.Errorf("id is required for move")
		}
		if s.Parent == "" {
			return fmt.Errorf("parent is required for move")
		}
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	for _, l := range s.Labels {
		if l.Lang == "" || l.Text == "" {
			return fmt.Errorf("labels need lang and text")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Root == "" {
		return fmt.Errorf("assertions[%d]: root is required", index)
	}
	if a.ID != "" && len(a.Path) > 0 {
		return fmt.Errorf("assertions[%d]: id and path are mutually exclusive", index)
	}

	switch a.Type {
	case AssertChildren:
	case AssertHistory:
		for _, r := range a.Reasons {
			if _, err := parseReasonName(r); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertDocumentContains:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for document_contains", index)
		}
	case AssertRetrieveError:
		if !errorCodes[a.Code] {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
