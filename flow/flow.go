package flow

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/action"
	"github.com/mohitkumar/automate/event"
	"github.com/mohitkumar/automate/model"
)

const PROP_NAME = "name"
const PROP_DESCRIPTION = "description"
const PROP_OWNER = "owner"
const PROP_LOGO = "logo"
const PROP_ACTIVE = "active"
const PROP_CREATE_DATE = "createDate"
const PROP_LAST_MODIFIED_DATE = "lastModifiedDate"
const PROP_LAST_RUN_DATE = "lastRunDate"
const PROP_TAGS = "tags"
const PROP_TRIGGERS = "triggers"
const PROP_ACTIONS = "actions"

// TriggerBinder keeps the event subscriptions of a flow in sync with its triggers.
type TriggerBinder interface {
	Subscribe(event string, r event.Runnable)
	Unsubscribe(event string, r event.Runnable)
	UnsubscribeAll(r event.Runnable)
}

type Props struct {
	Id          string   `mapstructure:"id" json:"id,omitempty"`
	Name        string   `mapstructure:"name" json:"name,omitempty"`
	Description string   `mapstructure:"description" json:"description,omitempty"`
	Owner       string   `mapstructure:"owner" json:"owner,omitempty"`
	Logo        string   `mapstructure:"logo" json:"logo,omitempty"`
	Active      *bool    `mapstructure:"active" json:"active,omitempty"`
	Tags        []string `mapstructure:"tags" json:"tags,omitempty"`
	Triggers    []string `mapstructure:"triggers" json:"triggers,omitempty"`
}

func DecodeProps(raw map[string]any) (Props, error) {
	var p Props
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &p})
	if err != nil {
		return p, err
	}
	if err := decoder.Decode(raw); err != nil {
		return p, model.ValidationError{Message: err.Error()}
	}
	return p, nil
}

type Option func(f *Flow)

func WithObserver(o Observer) Option {
	return func(f *Flow) {
		f.observer = o
	}
}

func WithPropertyObserver(o PropertyObserver) Option {
	return func(f *Flow) {
		f.propObserver = o
	}
}

func WithBinder(b TriggerBinder) Option {
	return func(f *Flow) {
		f.binder = b
	}
}

type Flow struct {
	mu               sync.RWMutex
	id               string
	name             string
	description      string
	owner            string
	logo             string
	createDate       time.Time
	lastModifiedDate time.Time
	lastRunDate      *time.Time
	active           bool
	tags             []string
	triggers         []string
	actions          []*action.Action

	observer     Observer
	propObserver PropertyObserver
	binder       TriggerBinder

	wg sync.WaitGroup
}

var _ event.Runnable = new(Flow)

func New(props Props, opts ...Option) *Flow {
	now := time.Now()
	f := &Flow{
		id:               props.Id,
		name:             props.Name,
		description:      props.Description,
		owner:            props.Owner,
		logo:             props.Logo,
		createDate:       now,
		lastModifiedDate: now,
		active:           true,
		observer:         NoopObserver{},
	}
	if len(f.id) == 0 {
		f.id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	if len(f.name) == 0 {
		f.name = model.DEFAULT_FLOW_NAME
	}
	if len(f.description) == 0 {
		f.description = model.DEFAULT_FLOW_DESCRIPTION
	}
	if props.Active != nil {
		f.active = *props.Active
	}
	for _, tag := range props.Tags {
		if len(tag) != 0 && indexOf(f.tags, tag) < 0 {
			f.tags = append(f.tags, tag)
		}
	}
	for _, tr := range props.Triggers {
		if len(tr) != 0 && indexOf(f.triggers, tr) < 0 {
			f.triggers = append(f.triggers, tr)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.binder != nil {
		for _, tr := range f.triggers {
			f.binder.Subscribe(tr, f)
		}
	}
	return f
}

func (f *Flow) notify(prop string, prev any, next any) {
	if f.propObserver != nil {
		f.propObserver.OnPropUpdated(f, prop, prev, next)
	}
}

func (f *Flow) GetId() string {
	return f.id
}

func (f *Flow) GetName() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.name
}

func (f *Flow) GetDescription() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.description
}

func (f *Flow) GetOwner() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.owner
}

func (f *Flow) GetLogo() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.logo
}

func (f *Flow) IsActive() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

func (f *Flow) GetCreateDate() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.createDate
}

func (f *Flow) GetLastModifiedDate() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastModifiedDate
}

func (f *Flow) GetLastRunDate() *time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastRunDate == nil {
		return nil
	}
	d := *f.lastRunDate
	return &d
}

func (f *Flow) GetTags() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.tags...)
}

func (f *Flow) GetTriggers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.triggers...)
}

func (f *Flow) GetActions() []*action.Action {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*action.Action{}, f.actions...)
}

func (f *Flow) GetActionById(id string) (*action.Action, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.actions {
		if a.GetId() == id {
			return a, true
		}
	}
	return nil, false
}

func (f *Flow) SetName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return model.ValidationError{Field: PROP_NAME, Message: "must not be empty"}
	}
	f.mu.Lock()
	prev := f.name
	f.name = name
	f.mu.Unlock()
	f.notify(PROP_NAME, prev, name)
	return nil
}

func (f *Flow) SetDescription(desc string) {
	f.mu.Lock()
	prev := f.description
	f.description = desc
	f.mu.Unlock()
	f.notify(PROP_DESCRIPTION, prev, desc)
}

func (f *Flow) SetOwner(owner string) {
	f.mu.Lock()
	prev := f.owner
	f.owner = owner
	f.mu.Unlock()
	f.notify(PROP_OWNER, prev, owner)
}

func (f *Flow) SetLogo(logo string) {
	f.mu.Lock()
	prev := f.logo
	f.logo = logo
	f.mu.Unlock()
	f.notify(PROP_LOGO, prev, logo)
}

func (f *Flow) SetActive(active bool) {
	f.mu.Lock()
	prev := f.active
	f.active = active
	f.mu.Unlock()
	f.notify(PROP_ACTIVE, prev, active)
}

func (f *Flow) SetCreateDate(date time.Time) {
	f.mu.Lock()
	prev := f.createDate
	f.createDate = date
	f.mu.Unlock()
	f.notify(PROP_CREATE_DATE, prev, date)
}

func (f *Flow) SetLastModifiedDate(date time.Time) {
	f.mu.Lock()
	prev := f.lastModifiedDate
	f.lastModifiedDate = date
	f.mu.Unlock()
	f.notify(PROP_LAST_MODIFIED_DATE, prev, date)
}

func (f *Flow) setLastRunDate(date time.Time) {
	f.mu.Lock()
	prev := f.lastRunDate
	f.lastRunDate = &date
	f.mu.Unlock()
	f.notify(PROP_LAST_RUN_DATE, prev, date)
}

func (f *Flow) AddTag(tag string) error {
	if len(tag) == 0 {
		return model.ValidationError{Field: PROP_TAGS, Message: "tag must not be empty"}
	}
	f.mu.Lock()
	if indexOf(f.tags, tag) >= 0 {
		f.mu.Unlock()
		return nil
	}
	prev := append([]string{}, f.tags...)
	f.tags = append(f.tags, tag)
	next := append([]string{}, f.tags...)
	f.mu.Unlock()
	f.notify(PROP_TAGS, prev, next)
	return nil
}

func (f *Flow) RemoveTag(tag string) {
	f.mu.Lock()
	idx := indexOf(f.tags, tag)
	if idx < 0 {
		f.mu.Unlock()
		return
	}
	prev := append([]string{}, f.tags...)
	f.tags = append(f.tags[:idx:idx], f.tags[idx+1:]...)
	next := append([]string{}, f.tags...)
	f.mu.Unlock()
	f.notify(PROP_TAGS, prev, next)
}

// AddTrigger binds the flow to event. Adding a trigger twice is a no-op.
func (f *Flow) AddTrigger(event string) error {
	if len(event) == 0 {
		return model.ValidationError{Field: PROP_TRIGGERS, Message: "event must not be empty"}
	}
	f.mu.Lock()
	if indexOf(f.triggers, event) >= 0 {
		f.mu.Unlock()
		return nil
	}
	prev := append([]string{}, f.triggers...)
	f.triggers = append(f.triggers, event)
	next := append([]string{}, f.triggers...)
	f.mu.Unlock()
	if f.binder != nil {
		f.binder.Subscribe(event, f)
	}
	f.notify(PROP_TRIGGERS, prev, next)
	return nil
}

func (f *Flow) RemoveTrigger(event string) {
	f.mu.Lock()
	idx := indexOf(f.triggers, event)
	if idx < 0 {
		f.mu.Unlock()
		return
	}
	prev := append([]string{}, f.triggers...)
	f.triggers = append(f.triggers[:idx:idx], f.triggers[idx+1:]...)
	next := append([]string{}, f.triggers...)
	f.mu.Unlock()
	if f.binder != nil {
		f.binder.Unsubscribe(event, f)
	}
	f.notify(PROP_TRIGGERS, prev, next)
}

func (f *Flow) AddAction(a *action.Action) error {
	f.mu.RLock()
	pos := len(f.actions)
	f.mu.RUnlock()
	return f.InsertAction(a, pos)
}

func (f *Flow) InsertAction(a *action.Action, pos int) error {
	if a == nil {
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action must not be nil"}
	}
	f.mu.Lock()
	if f.actionIndex(a.GetId()) >= 0 {
		f.mu.Unlock()
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action " + a.GetId() + " already in flow"}
	}
	if pos < 0 || pos > len(f.actions) {
		f.mu.Unlock()
		return model.ValidationError{Field: PROP_ACTIONS, Message: "position out of range"}
	}
	prev := f.actionRecords()
	f.actions = append(f.actions, nil)
	copy(f.actions[pos+1:], f.actions[pos:])
	f.actions[pos] = a
	next := f.actionRecords()
	f.mu.Unlock()
	f.notify(PROP_ACTIONS, prev, next)
	return nil
}

// MoveAction relocates a to position to, positions past the end move it last.
func (f *Flow) MoveAction(a *action.Action, to int) error {
	if a == nil {
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action must not be nil"}
	}
	if to < 0 {
		return model.ValidationError{Field: PROP_ACTIONS, Message: "position out of range"}
	}
	f.mu.Lock()
	from := f.actionIndex(a.GetId())
	if from < 0 {
		f.mu.Unlock()
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action " + a.GetId() + " not found"}
	}
	if to >= len(f.actions) {
		to = len(f.actions) - 1
	}
	prev := f.actionRecords()
	moved := f.actions[from]
	f.actions = append(f.actions[:from], f.actions[from+1:]...)
	f.actions = append(f.actions, nil)
	copy(f.actions[to+1:], f.actions[to:])
	f.actions[to] = moved
	next := f.actionRecords()
	f.mu.Unlock()
	f.notify(PROP_ACTIONS, prev, next)
	return nil
}

func (f *Flow) RemoveAction(a *action.Action) error {
	if a == nil {
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action must not be nil"}
	}
	return f.RemoveActionById(a.GetId())
}

func (f *Flow) RemoveActionById(id string) error {
	f.mu.RLock()
	idx := f.actionIndex(id)
	f.mu.RUnlock()
	if idx < 0 {
		return model.ValidationError{Field: PROP_ACTIONS, Message: "action " + id + " not found"}
	}
	return f.RemoveActionAt(idx)
}

func (f *Flow) RemoveActionAt(pos int) error {
	f.mu.Lock()
	if pos < 0 || pos >= len(f.actions) {
		f.mu.Unlock()
		return model.ValidationError{Field: PROP_ACTIONS, Message: "position out of range"}
	}
	prev := f.actionRecords()
	f.actions = append(f.actions[:pos], f.actions[pos+1:]...)
	next := f.actionRecords()
	f.mu.Unlock()
	f.notify(PROP_ACTIONS, prev, next)
	return nil
}

func (f *Flow) RemoveAllActions() {
	f.mu.Lock()
	prev := f.actionRecords()
	f.actions = nil
	f.mu.Unlock()
	f.notify(PROP_ACTIONS, prev, []model.ActionRecord{})
}

// Destroy detaches every trigger and releases the actions. Runs in flight finish on their own snapshot.
func (f *Flow) Destroy() {
	if f.binder != nil {
		f.binder.UnsubscribeAll(f)
	}
	f.mu.Lock()
	f.active = false
	f.actions = nil
	f.mu.Unlock()
}

func (f *Flow) actionIndex(id string) int {
	for i, a := range f.actions {
		if a.GetId() == id {
			return i
		}
	}
	return -1
}

func (f *Flow) actionRecords() []model.ActionRecord {
	records := make([]model.ActionRecord, 0, len(f.actions))
	for _, a := range f.actions {
		records = append(records, a.ToRecord())
	}
	return records
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
