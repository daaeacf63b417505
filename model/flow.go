package model

import "time"

type FlowState string

const FLOW_STATE_RUNNING FlowState = "RUNNING"
const FLOW_STATE_COMPLETED FlowState = "COMPLETED"
const FLOW_STATE_FAILED FlowState = "FAILED"
const FLOW_STATE_REJECTED FlowState = "REJECTED"

const DEFAULT_FLOW_NAME = "Untitled Flow"
const DEFAULT_FLOW_DESCRIPTION = "No description for this flow."

type MethodRef struct {
	Service string `json:"service"`
	Name    string `json:"name"`
}

type ActionRecord struct {
	Id            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	Method        MethodRef      `json:"method"`
	Args          map[string]any `json:"args,omitempty"`
	Wait          bool           `json:"wait"`
	Timeout       int            `json:"timeout"`
	RetryCount    int            `json:"retryCount"`
	OnErrorAction string         `json:"onErrorAction"`
	Transform     map[string]any `json:"transform,omitempty"`
}

type FlowRecord struct {
	Id               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Owner            string         `json:"owner,omitempty"`
	Logo             string         `json:"logo,omitempty"`
	CreateDate       time.Time      `json:"createDate"`
	LastModifiedDate time.Time      `json:"lastModifiedDate"`
	LastRunDate      *time.Time     `json:"lastRunDate,omitempty"`
	Active           bool           `json:"active"`
	Tags             []string       `json:"tags"`
	Triggers         []string       `json:"triggers"`
	Actions          []ActionRecord `json:"actions"`
}

type FlowRunState struct {
	FlowId    string    `json:"flowId"`
	State     FlowState `json:"state"`
	Error     string    `json:"error,omitempty"`
	Result    any       `json:"result,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt,omitempty"`
}
