/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package protocol

import "fmt"

// KeyPayload is the KEY handshake payload: [secret, cluster, node] or,
// when the identity carries tags, a fourth element [secret, cluster, node,
// tags] (SPEC_FULL.md §3a).
type KeyPayload struct {
	Secret  string
	Cluster string
	Node    string
	Tags    map[string]string
}

func (k KeyPayload) ToValues() []interface{} {
	v := []interface{}{k.Secret, k.Cluster, k.Node}
	if len(k.Tags) > 0 {
		v = append(v, k.Tags)
	}
	return v
}

// ParseKeyPayload accepts both the 3-element and 4-element forms.
func ParseKeyPayload(payload []interface{}) (KeyPayload, error) {
	if len(payload) < 3 {
		return KeyPayload{}, fmt.Errorf("KEY payload needs at least 3 elements, got %d", len(payload))
	}
	secret, ok1 := payload[0].(string)
	cluster, ok2 := payload[1].(string)
	node, ok3 := payload[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return KeyPayload{}, fmt.Errorf("KEY payload elements must be strings")
	}
	kp := KeyPayload{Secret: secret, Cluster: cluster, Node: node}
	if len(payload) >= 4 {
		if m, ok := payload[3].(map[interface{}]interface{}); ok {
			kp.Tags = make(map[string]string, len(m))
			for k, v := range m {
				ks, _ := k.(string)
				vs, _ := v.(string)
				kp.Tags[ks] = vs
			}
		}
	}
	return kp, nil
}

// MetaPayload is the PI_PARAMETER_META payload: pi_names (first element is
// the tuning-goal name) and param_names.
type MetaPayload struct {
	PINames    []string
	ParamNames []string
}

func (m MetaPayload) ToValues() []interface{} {
	return []interface{}{toAnySlice(m.PINames), toAnySlice(m.ParamNames)}
}

// ParseMetaPayload decodes a PI_PARAMETER_META payload.
func ParseMetaPayload(payload []interface{}) (MetaPayload, error) {
	if len(payload) < 2 {
		return MetaPayload{}, fmt.Errorf("PI_PARAMETER_META payload needs 2 elements, got %d", len(payload))
	}
	pis, err := toStringSlice(payload[0])
	if err != nil {
		return MetaPayload{}, fmt.Errorf("pi_names: %w", err)
	}
	params, err := toStringSlice(payload[1])
	if err != nil {
		return MetaPayload{}, fmt.Errorf("param_names: %w", err)
	}
	return MetaPayload{PINames: pis, ParamNames: params}, nil
}

// PIPayload is the PI payload: values[0] is the reward (omitted entirely
// from the slice when there is no tuning goal).
type PIPayload struct {
	Values []float64
}

func (p PIPayload) ToValues() []interface{} {
	return []interface{}{toAnyFloatSlice(p.Values)}
}

// ParsePIPayload decodes a PI payload.
func ParsePIPayload(payload []interface{}) (PIPayload, error) {
	if len(payload) < 1 {
		return PIPayload{}, fmt.Errorf("PI payload needs 1 element, got %d", len(payload))
	}
	vals, err := toFloatSlice(payload[0])
	if err != nil {
		return PIPayload{}, fmt.Errorf("values: %w", err)
	}
	return PIPayload{Values: vals}, nil
}

// ActionPayload is the ACTION payload: values[] is the action vector.
type ActionPayload struct {
	Values []float64
}

func (a ActionPayload) ToValues() []interface{} {
	return []interface{}{toAnyFloatSlice(a.Values)}
}

// ParseActionPayload decodes an ACTION payload.
func ParseActionPayload(payload []interface{}) (ActionPayload, error) {
	if len(payload) < 1 {
		return ActionPayload{}, fmt.Errorf("ACTION payload needs 1 element, got %d", len(payload))
	}
	vals, err := toFloatSlice(payload[0])
	if err != nil {
		return ActionPayload{}, fmt.Errorf("values: %w", err)
	}
	return ActionPayload{Values: vals}, nil
}

// RequesterPayload covers CLIENT_STATUS/CLUSTER_STATUS and their replies:
// the first element is always the requester's hex id.
type RequesterPayload struct {
	RequesterID string
	Rest        []interface{}
}

func (r RequesterPayload) ToValues() []interface{} {
	v := []interface{}{r.RequesterID}
	return append(v, r.Rest...)
}

// ParseRequesterPayload decodes a requester-id-first payload.
func ParseRequesterPayload(payload []interface{}) (RequesterPayload, error) {
	if len(payload) < 1 {
		return RequesterPayload{}, fmt.Errorf("requester payload needs at least 1 element, got %d", len(payload))
	}
	id, ok := payload[0].(string)
	if !ok {
		return RequesterPayload{}, fmt.Errorf("requester id must be a string")
	}
	return RequesterPayload{RequesterID: id, Rest: payload[1:]}, nil
}

func toAnySlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

func toStringSlice(v interface{}) ([]string, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("expected string element at index %d, got %T", i, e)
		}
		out[i] = s
	}
	return out, nil
}

func toAnyFloatSlice(f []float64) []interface{} {
	out := make([]interface{}, len(f))
	for i, v := range f {
		out[i] = v
	}
	return out
}

func toFloatSlice(v interface{}) ([]float64, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", v)
	}
	out := make([]float64, len(arr))
	for i, e := range arr {
		f, err := asFloat(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
