package classtree

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/classver/internal/model"
)

// DefinitionError reports an invalid classification definition.
type DefinitionError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile parses the classifications defined in one CUE file.
//
// Definitions live under the top-level "classification" struct, one field
// per root id:
//
//	classification: colors: {
//		label: [{lang: "en", text: "Colors"}]
//		categories: [
//			{id: "red", label: [{lang: "en", text: "Red"}]},
//			{id: "blue", categories: [{id: "navy"}]},
//		]
//	}
//
// Children keep list order. Roots are returned in declaration order.
func LoadFile(path string) ([]*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return extract(value)
}

// LoadDir parses the CUE package in dir.
func LoadDir(dir string) ([]*model.Snapshot, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &DefinitionError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &DefinitionError{Field: "load", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return extract(value)
}

// Load dispatches to LoadDir or LoadFile depending on what path names.
func Load(path string) ([]*model.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat definition: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

func extract(value cue.Value) ([]*model.Snapshot, error) {
	classes := value.LookupPath(cue.ParsePath("classification"))
	if !classes.Exists() {
		return nil, &DefinitionError{Field: "classification", Message: "no classifications defined", Pos: value.Pos()}
	}
	iter, err := classes.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*model.Snapshot
	for iter.Next() {
		rootID, err := model.RootCategoryID(iter.Label())
		if err != nil {
			return nil, &DefinitionError{Field: "classification", Message: err.Error(), Pos: iter.Value().Pos()}
		}
		s, err := parseNode(iter.Value(), rootID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, &DefinitionError{Field: "classification", Message: "no classifications defined", Pos: classes.Pos()}
	}
	return out, nil
}

func parseNode(v cue.Value, id model.CategoryID) (*model.Snapshot, error) {
	labels, err := parseLabels(v)
	if err != nil {
		return nil, err
	}
	s := &model.Snapshot{ID: id, Labels: labels}

	catsVal := v.LookupPath(cue.ParsePath("categories"))
	if !catsVal.Exists() {
		return s, nil
	}
	list, err := catsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := make(map[string]bool)
	for list.Next() {
		item := list.Value()
		idVal := item.LookupPath(cue.ParsePath("id"))
		if !idVal.Exists() {
			return nil, &DefinitionError{Field: "categories.id", Message: "category id is required", Pos: item.Pos()}
		}
		local, err := idVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cid, err := model.NewCategoryID(id.RootID, local)
		if err != nil || cid.IsRoot() {
			msg := fmt.Sprintf("invalid category id %q", local)
			if err != nil {
				msg = err.Error()
			}
			return nil, &DefinitionError{Field: "categories.id", Message: msg, Pos: idVal.Pos()}
		}
		if seen[cid.ID] {
			return nil, &DefinitionError{Field: "categories.id", Message: fmt.Sprintf("duplicate category id %q", cid.ID), Pos: idVal.Pos()}
		}
		seen[cid.ID] = true

		child, err := parseNode(item, cid)
		if err != nil {
			return nil, err
		}
		s.Children = append(s.Children, child)
	}
	return s, nil
}

func parseLabels(v cue.Value) ([]model.Label, error) {
	labelsVal := v.LookupPath(cue.ParsePath("label"))
	if !labelsVal.Exists() {
		return nil, nil
	}
	list, err := labelsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var labels []model.Label
	for list.Next() {
		item := list.Value()
		var l model.Label
		for _, f := range []struct {
			name     string
			dst      *string
			required bool
		}{
			{"lang", &l.Lang, true},
			{"text", &l.Text, true},
			{"description", &l.Description, false},
		} {
			fv := item.LookupPath(cue.ParsePath(f.name))
			if !fv.Exists() {
				if f.required {
					return nil, &DefinitionError{Field: "label." + f.name, Message: f.name + " is required", Pos: item.Pos()}
				}
				continue
			}
			s, err := fv.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			*f.dst = s
		}
		labels = append(labels, l)
	}
	return labels, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &DefinitionError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
