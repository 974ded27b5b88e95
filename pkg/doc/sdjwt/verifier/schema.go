/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verifier

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/go-jose/go-jose/v3/json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hyperledger/aries-sdjwt-go/pkg/doc/sdjwt/common"
)

// SchemaCache defines a cache of claims schemas.
type SchemaCache interface {
	// Put element to the cache.
	Put(k string, v []byte)

	// Get element from the cache, returns false at second return value if element is not present.
	Get(k string) ([]byte, bool)
}

type cache interface {
	Set(k, v []byte)

	HasGet(dst, k []byte) ([]byte, bool)

	Del(k []byte)
}

// ExpirableSchemaCache is an implementation of SchemaCache based fastcache.Cache with expirable elements.
type ExpirableSchemaCache struct {
	cache      cache
	expiration time.Duration
}

// NewExpirableSchemaCache creates new instance of ExpirableSchemaCache.
func NewExpirableSchemaCache(size int, expiration time.Duration) *ExpirableSchemaCache {
	return &ExpirableSchemaCache{
		cache:      fastcache.New(size),
		expiration: expiration,
	}
}

const numBytesTime = 8

// Put element to the cache. The expiry time is stored in front of the value.
func (sc *ExpirableSchemaCache) Put(k string, v []byte) {
	expires := time.Now().Add(sc.expiration).Unix()

	ve := make([]byte, numBytesTime+len(v))
	binary.LittleEndian.PutUint64(ve[:numBytesTime], uint64(expires))
	copy(ve[numBytesTime:], v)

	sc.cache.Set([]byte(k), ve)
}

// Get element from the cache. An expired element is removed and reported as not found.
func (sc *ExpirableSchemaCache) Get(k string) ([]byte, bool) {
	b, ok := sc.cache.HasGet(nil, []byte(k))
	if !ok || len(b) < numBytesTime {
		return nil, false
	}

	expires := int64(binary.LittleEndian.Uint64(b[:numBytesTime]))
	if expires < time.Now().Unix() {
		sc.cache.Del([]byte(k))

		return nil, false
	}

	return b[numBytesTime:], true
}

func getJSONSchema(url string, pOpts *parseOpts) ([]byte, error) {
	if pOpts.schemaCache == nil {
		return loadJSONSchema(url, pOpts.schemaDownloadClient)
	}

	if cachedBytes, ok := pOpts.schemaCache.Get(url); ok {
		return cachedBytes, nil
	}

	schemaBytes, err := loadJSONSchema(url, pOpts.schemaDownloadClient)
	if err != nil {
		return nil, err
	}

	pOpts.schemaCache.Put(url, schemaBytes)

	return schemaBytes, nil
}

func loadJSONSchema(url string, client *http.Client) ([]byte, error) {
	resp, err := client.Get(url) // nolint:noctx
	if err != nil {
		return nil, fmt.Errorf("%w: load claims schema: %v", common.ErrInternal, err)
	}

	defer func() {
		if e := resp.Body.Close(); e != nil {
			logger.Errorf("closing response body failed [%v]", e)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: claims schema endpoint HTTP failure [%v]", common.ErrInternal, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: claims schema: read response body: %v", common.ErrInternal, err)
	}

	return body, nil
}

func validateSchema(schema []byte, claims map[string]interface{}) error {
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("%w: marshal claims: %v", common.ErrInternal, err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(claimsJSON))
	if err != nil {
		return fmt.Errorf("%w: validate claims schema: %v", common.ErrParsing, err)
	}

	if result.Valid() {
		return nil
	}

	errMsgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errMsgs = append(errMsgs, desc.String())
	}

	return fmt.Errorf("%w: claims do not match schema: %s", common.ErrParsing, strings.Join(errMsgs, "; "))
}
