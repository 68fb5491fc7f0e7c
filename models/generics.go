package models

import (
	"context"
	"errors"

	"github.com/gastrodata/mercuriale_backend/config"
	"github.com/gastrodata/mercuriale_backend/utils"
)

type Resource interface {
	GetOrganizationId() string
}

// first find in redis, then in db, using ctx's organization_id in WHERE, cache result
// (may return RecordNotFound error)
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}
	// find in redis
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		return nil, err
	}
	// if not found in redis
	if result == nil {
		// fetch from db
		result, err = utils.FetchModel[T](ctx, organizationId, id, associations...)
		if err != nil {
			return nil, err
		}

		// store in redis
		if err := utils.StoreRedis[T](result, id); err != nil {
			return nil, err
		}
	} else {
		// if found in redis
		// check if organization ids match
		if (*result).GetOrganizationId() != organizationId {
			return nil, errors.New("cannot access resource owned by other organization")
		}
	}

	return result, nil
}

// list all resources, redis or db, cache result
func ListAllResource[T any](ctx context.Context, orders ...string) ([]*T, error) {

	organizationId, ok := utils.GetOrganizationIdFromContext(ctx)
	if !ok || organizationId == "" {
		return nil, errors.New("organization id is required")
	}

	// first try redis cache
	results, err := utils.RetrieveRedisList[T](organizationId)
	if err != nil {
		return nil, err
	}
	// if not exists in redis
	if results == nil {
		// fetch from db
		db := config.GetDB()
		var model T
		dbCtx := db.WithContext(ctx).Where("organization_id = ?", organizationId)
		for _, order := range orders {
			dbCtx = dbCtx.Order(order)
		}
		// db query
		if err = dbCtx.Model(&model).Find(&results).Error; err != nil {
			return nil, err
		}

		// caching the result
		if err := utils.StoreRedisList[T](results, organizationId); err != nil {
			return nil, err
		}
	}

	return results, nil
}

func ToggleActiveModel[T any](ctx context.Context, organizationId string, id int, isActive bool) (*T, error) {

	var result T
	var err error
	db := config.GetDB()

	// fetch model before updating
	if organizationId == "" {
		err = db.WithContext(ctx).First(&result, id).Error
	} else {
		err = db.WithContext(ctx).Where("organization_id = ?", organizationId).First(&result, id).Error
	}
	if err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Model(&result).
		UpdateColumn("IsActive", isActive).Error; err != nil {
		return nil, err
	}

	// stale cache would resurrect the previous active flag
	if err := utils.ClearRedis[T](id); err != nil {
		return nil, err
	}
	if err := utils.ClearRedisList[T](organizationId); err != nil {
		return nil, err
	}

	return &result, nil
}
