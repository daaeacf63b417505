package flow

import (
	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/mohitkumar/automate/model"
	"go.uber.org/zap"
)

// MethodResolver finds the method an action record refers to.
type MethodResolver func(ref model.MethodRef) (*metadata.Method, error)

func (f *Flow) ToRecord() model.FlowRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec := model.FlowRecord{
		Id:               f.id,
		Name:             f.name,
		Description:      f.description,
		Owner:            f.owner,
		Logo:             f.logo,
		CreateDate:       f.createDate,
		LastModifiedDate: f.lastModifiedDate,
		Active:           f.active,
		Tags:             append([]string{}, f.tags...),
		Triggers:         append([]string{}, f.triggers...),
		Actions:          f.actionRecords(),
	}
	if f.lastRunDate != nil {
		d := *f.lastRunDate
		rec.LastRunDate = &d
	}
	return rec
}

// FromRecord rebuilds a flow from its stored form. Actions whose method can not be
// resolved are dropped.
func FromRecord(rec model.FlowRecord, resolve MethodResolver, opts ...Option) (*Flow, error) {
	active := rec.Active
	f := New(Props{
		Id:          rec.Id,
		Name:        rec.Name,
		Description: rec.Description,
		Owner:       rec.Owner,
		Logo:        rec.Logo,
		Active:      &active,
		Tags:        rec.Tags,
		Triggers:    rec.Triggers,
	})
	if !rec.CreateDate.IsZero() {
		f.createDate = rec.CreateDate
	}
	if !rec.LastModifiedDate.IsZero() {
		f.lastModifiedDate = rec.LastModifiedDate
	}
	if rec.LastRunDate != nil {
		d := *rec.LastRunDate
		f.lastRunDate = &d
	}
	for _, ar := range rec.Actions {
		method, err := resolve(ar.Method)
		if err != nil {
			logger.Warn("dropping action, method not found", zap.String("flow", rec.Id), zap.String("action", ar.Id), zap.Error(err))
			continue
		}
		a, err := action.FromRecord(ar, method)
		if err != nil {
			return nil, err
		}
		if err := f.AddAction(a); err != nil {
			return nil, err
		}
	}
	// observers and the binder are attached last so rebuilding does not notify or subscribe twice
	for _, opt := range opts {
		opt(f)
	}
	if f.binder != nil {
		for _, tr := range f.triggers {
			f.binder.Subscribe(tr, f)
		}
	}
	return f, nil
}
