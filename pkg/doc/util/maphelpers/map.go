/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maphelpers

// CopyMap performs deep copy of map, nested maps and nested arrays.
// Scalar values are shared.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}

	cm := make(map[string]interface{}, len(m))

	for k, v := range m {
		cm[k] = CopyValue(v)
	}

	return cm
}

// CopyValue copies claim value, descending into objects and arrays.
func CopyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return CopyMap(value)
	case []interface{}:
		cs := make([]interface{}, len(value))

		for i := range value {
			cs[i] = CopyValue(value[i])
		}

		return cs
	default:
		return v
	}
}
