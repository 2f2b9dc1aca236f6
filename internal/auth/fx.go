// Package auth groups account, session and social login modules.
package auth

import (
	"go.uber.org/fx"

	authconfig "github.com/dreamland-studio/dreamland/internal/auth/config"
	"github.com/dreamland-studio/dreamland/internal/auth/local"
	"github.com/dreamland-studio/dreamland/internal/auth/repository"
	"github.com/dreamland-studio/dreamland/internal/auth/service"
	"github.com/dreamland-studio/dreamland/internal/auth/session"
	"github.com/dreamland-studio/dreamland/internal/auth/social"
)

// Module wires the whole auth subsystem.
var Module = fx.Module("auth",
	authconfig.Module,
	repository.Module,
	service.Module,
	session.Module,
	social.Module,
	local.Module,
)
