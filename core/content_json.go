package core

import (
	"encoding/json"
	"fmt"
)

// Part kinds used by the JSON encoding of Content.
const (
	PartKindText             = "text"
	PartKindData             = "data"
	PartKindFile             = "file"
	PartKindFunctionCall     = "function_call"
	PartKindFunctionResponse = "function_response"
)

type wirePart struct {
	Kind             string            `json:"kind"`
	Text             string            `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	File             *File             `json:"file,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

// MarshalJSON encodes the content with a kind discriminator per part so that
// sessions can be persisted and restored without losing part types.
func (c Content) MarshalJSON() ([]byte, error) {
	wc := wireContent{Role: c.Role, Parts: make([]wirePart, 0, len(c.Parts))}

	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: PartKindText, Text: v.Text, Metadata: v.Metadata})
		case DataPart:
			wc.Parts = append(wc.Parts, wirePart{Kind: PartKindData, Data: v.Data, Metadata: v.Metadata})
		case FilePart:
			f := v.File
			wc.Parts = append(wc.Parts, wirePart{Kind: PartKindFile, File: &f, Metadata: v.Metadata})
		case FunctionCallPart:
			fc := v.FunctionCall
			wc.Parts = append(wc.Parts, wirePart{Kind: PartKindFunctionCall, FunctionCall: &fc, Metadata: v.Metadata})
		case FunctionResponsePart:
			fr := v.FunctionResponse
			wc.Parts = append(wc.Parts, wirePart{Kind: PartKindFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}

	return json.Marshal(wc)
}

// UnmarshalJSON restores content encoded by MarshalJSON.
func (c *Content) UnmarshalJSON(b []byte) error {
	var wc wireContent
	if err := json.Unmarshal(b, &wc); err != nil {
		return err
	}

	c.Role = wc.Role
	c.Parts = make([]Part, 0, len(wc.Parts))

	for i, wp := range wc.Parts {
		switch wp.Kind {
		case PartKindText:
			c.Parts = append(c.Parts, TextPart{Text: wp.Text, Metadata: wp.Metadata})
		case PartKindData:
			c.Parts = append(c.Parts, DataPart{Data: wp.Data, Metadata: wp.Metadata})
		case PartKindFile:
			if wp.File == nil {
				return fmt.Errorf("part %d: file kind without file", i)
			}
			c.Parts = append(c.Parts, FilePart{File: *wp.File, Metadata: wp.Metadata})
		case PartKindFunctionCall:
			if wp.FunctionCall == nil {
				return fmt.Errorf("part %d: function_call kind without call", i)
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: *wp.FunctionCall, Metadata: wp.Metadata})
		case PartKindFunctionResponse:
			if wp.FunctionResponse == nil {
				return fmt.Errorf("part %d: function_response kind without response", i)
			}
			c.Parts = append(c.Parts, FunctionResponsePart{FunctionResponse: *wp.FunctionResponse, Metadata: wp.Metadata})
		default:
			return fmt.Errorf("part %d: unknown kind %q", i, wp.Kind)
		}
	}

	return nil
}
