//
// Copyright (C) 2025 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/stepflow
//

package stepflow

// resolve maps step ids to registry positions. The scan does not stop at
// the first collision so that all duplicates are reported at once.
func resolve(steps []step) (map[string]int, error) {
	index := make(map[string]int, len(steps))
	count := make(map[string]int)

	for at, s := range steps {
		if s.kind() == KindEnd {
			continue
		}

		id := s.id()
		if id == "" {
			return nil, &AnonymousStepError{Position: at}
		}

		count[id]++
		if _, has := index[id]; !has {
			index[id] = at
		}
	}

	var dups []Occurrence
	for at, s := range steps {
		if s.kind() == KindEnd {
			continue
		}
		if id := s.id(); count[id] > 1 {
			dups = append(dups, Occurrence{ID: id, Position: at})
		}
	}

	if len(dups) != 0 {
		return nil, &DuplicateIDError{Occurrences: dups}
	}

	return index, nil
}
