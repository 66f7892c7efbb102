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

// Package identity holds the Agent Identity entity: a 128-bit id generated
// once per process, plus the cluster/node naming and shared secret used in
// the KEY handshake. The id is immutable for the lifetime of the process.
package identity

import (
	"encoding/hex"

	hcuuid "github.com/hashicorp/go-uuid"
)

// Identity is the Agent Identity entity of the data model: immutable once
// created, carried by the Session State Machine and echoed back to local
// CLI requesters in CLIENT_STATUS replies.
type Identity struct {
	// ID is a 128-bit value, unique per process.
	ID [16]byte

	Cluster string
	Node    string
	Secret  string

	// Tags is an optional, free-form set of labels forwarded as the
	// fourth KEY payload element when non-empty (see SPEC_FULL.md §3a).
	Tags map[string]string
}

// New creates an Identity with a freshly generated 128-bit id.
func New(cluster, node, secret string, tags map[string]string) (*Identity, error) {
	raw, err := hcuuid.GenerateRandomBytes(16)
	if err != nil {
		return nil, err
	}
	id := &Identity{Cluster: cluster, Node: node, Secret: secret, Tags: tags}
	copy(id.ID[:], raw)
	return id, nil
}

// Hex renders the id as a lowercase hex string, the form in which the
// agent logs its identity at startup.
func (i *Identity) Hex() string {
	return hex.EncodeToString(i.ID[:])
}
