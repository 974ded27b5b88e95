/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maphelpers

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/mitchellh/mapstructure"
)

var numericDateType = reflect.TypeOf(jwt.NumericDate(0))

// JSONNumberToJwtNumericDate hook for mapstructure library to decode json.Number (or float64) to jwt.NumericDate.
func JSONNumberToJwtNumericDate() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if t != numericDateType {
			return data, nil
		}

		switch f.Kind() { //nolint:exhaustive
		case reflect.String, reflect.Float32, reflect.Float64:
		default:
			return data, nil
		}

		parsedFloat, err := strconv.ParseFloat(fmt.Sprint(data), 64)
		if err != nil {
			return nil, fmt.Errorf("parse numeric date: %w", err)
		}

		return *jwt.NewNumericDate(time.Unix(int64(parsedFloat), 0)), nil
	}
}

// DecodeJSONMap decodes claims map into the struct pointed by result using json tags.
func DecodeJSONMap(claims map[string]interface{}, result interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		Squash:           true,
		WeaklyTypedInput: true,
		DecodeHook:       JSONNumberToJwtNumericDate(),
	})
	if err != nil {
		return fmt.Errorf("mapstruct decoder: %w", err)
	}

	if err = d.Decode(claims); err != nil {
		return fmt.Errorf("mapstruct decode: %w", err)
	}

	return nil
}
