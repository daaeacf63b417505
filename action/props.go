package action

import (
	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/model"
	"github.com/mohitkumar/automate/util"
)

// Props holds the user supplied settings of an action. Nil pointers take the defaults.
type Props struct {
	Id            string         `mapstructure:"id" json:"id,omitempty"`
	Name          string         `mapstructure:"name" json:"name,omitempty"`
	Description   string         `mapstructure:"description" json:"description,omitempty"`
	Args          map[string]any `mapstructure:"args" json:"args,omitempty"`
	Wait          *bool          `mapstructure:"wait" json:"wait,omitempty"`
	Timeout       *int           `mapstructure:"timeout" json:"timeout,omitempty"`
	RetryCount    *int           `mapstructure:"retryCount" json:"retryCount,omitempty"`
	OnErrorAction string         `mapstructure:"onErrorAction" json:"onErrorAction,omitempty"`
	Transform     map[string]any `mapstructure:"transform" json:"transform,omitempty"`
}

// DecodeProps decodes untyped props, values of the wrong type are reported as validation errors.
func DecodeProps(raw map[string]any) (Props, error) {
	var p Props
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return p, err
	}
	if err := decoder.Decode(raw); err != nil {
		return p, model.ValidationError{Message: err.Error()}
	}
	return p, p.Validate()
}

func (p Props) Validate() error {
	if p.Timeout != nil && *p.Timeout <= 0 {
		return model.ValidationError{Field: "timeout", Message: "must be a positive number of milliseconds"}
	}
	if p.RetryCount != nil && *p.RetryCount < 0 {
		return model.ValidationError{Field: "retryCount", Message: "must not be negative"}
	}
	if _, err := ParseOnErrorAction(p.OnErrorAction); err != nil {
		return err
	}
	return nil
}

func PropsFromRecord(rec model.ActionRecord) Props {
	wait := rec.Wait
	timeout := rec.Timeout
	retryCount := rec.RetryCount
	p := Props{
		Id:            rec.Id,
		Name:          rec.Name,
		Description:   rec.Description,
		Args:          util.CopyMap(rec.Args),
		Wait:          &wait,
		RetryCount:    &retryCount,
		OnErrorAction: rec.OnErrorAction,
		Transform:     util.CopyMap(rec.Transform),
	}
	if timeout > 0 {
		p.Timeout = &timeout
	}
	return p
}
