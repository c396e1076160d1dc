package team

import (
	"github.com/smallbiznis/entitlements/internal/team/repository"
	"github.com/smallbiznis/entitlements/internal/team/service"
	"go.uber.org/fx"
)

var Module = fx.Module("team.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewPlanSource),
	fx.Provide(service.NewService),
)
