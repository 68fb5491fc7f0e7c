package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/gastrodata/mercuriale_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// reference data that changes rarely but is read on every note intake
func typeHasExpiration(typeName string) bool {
	expirableTypes := map[string]bool{
		"SupplierProduct": true,
		"Establishment":   true,
		"Supplier":        true,
	}
	return expirableTypes[typeName]
}

// store instance, obj should be a pointer
func StoreRedis[T any](obj any, id int) error {
	var duration time.Duration
	if typeHasExpiration(GetTypeName[T]()) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(RedisKeyFor[T](id), &obj, duration)
}

// retrieve instance, nil when absent
func RetrieveRedis[T any](id int) (*T, error) {
	var result T
	exists, err := config.GetRedisObject(RedisKeyFor[T](id), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return &result, nil
}

// drop one cached instance
func ClearRedis[T any](id int) error {
	return config.RemoveRedisKey(RedisKeyFor[T](id))
}

// store list of models per organization
func StoreRedisList[T any](obj any, organizationId string) error {
	typeName := GetTypeName[T]()
	key := typeName + "List:" + organizationId

	var duration time.Duration
	if typeHasExpiration(typeName) {
		duration = GetCacheLifespan()
	}
	return config.SetRedisObject(key, &obj, duration)
}

// retrieve list of models per organization, nil when absent
func RetrieveRedisList[T any](organizationId string) ([]*T, error) {
	typeName := GetTypeName[T]()
	key := typeName + "List:" + organizationId

	var results []*T
	exists, err := config.GetRedisObject(key, &results)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return results, nil
}

// drop the cached list after create/update/delete
func ClearRedisList[T any](organizationId string) error {
	typeName := GetTypeName[T]()
	return config.RemoveRedisKey(typeName + "List:" + organizationId)
}

func RedisKeyFor[T any](id int) string {
	return GetTypeName[T]() + ":" + fmt.Sprint(id)
}
