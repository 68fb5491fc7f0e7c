package utils

import (
	"context"

	"github.com/gastrodata/mercuriale_backend/appctx"
)

var (
	ContextKeyOrganizationId  = appctx.ContextKeyOrganizationId
	ContextKeyEstablishmentId = appctx.ContextKeyEstablishmentId
	ContextKeyUserId          = appctx.ContextKeyUserId
	ContextKeyUserName        = appctx.ContextKeyUserName
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId
)

func GetOrganizationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyOrganizationId)
}

func GetEstablishmentIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyEstablishmentId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetOrganizationIdInContext(ctx context.Context, organizationId string) context.Context {
	return appctx.Set(ctx, ContextKeyOrganizationId, organizationId)
}

func SetEstablishmentIdInContext(ctx context.Context, establishmentId int) context.Context {
	return appctx.Set(ctx, ContextKeyEstablishmentId, establishmentId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
