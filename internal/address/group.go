// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package address

import "fmt"

// Target is anything that can be grouped by register.
type Target interface {
	TargetAddress() Address
}

// Batch is a set of targets resolving to the same register.
type Batch[T Target] struct {
	Reference uint16
	Items     []T
}

// Group resolves every target and groups them by reference address,
// keeping first-seen order of registers and of items within a register.
func Group[T Target](r Resolver, targets []T) ([]Batch[T], error) {
	var batches []Batch[T]
	index := make(map[uint16]int)

	for _, t := range targets {
		ref, err := r.Reference(t.TargetAddress())
		if err != nil {
			return nil, fmt.Errorf("resolve %v: %w", t.TargetAddress(), err)
		}
		i, ok := index[ref]
		if !ok {
			i = len(batches)
			index[ref] = i
			batches = append(batches, Batch[T]{Reference: ref})
		}
		batches[i].Items = append(batches[i].Items, t)
	}
	return batches, nil
}
