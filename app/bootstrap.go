package app

import (
	"context"

	"projector_reservation/log"

	"go.uber.org/zap"
)

// BootstrapAdmins runs the directory bootstrap once at startup.
func (a *App) BootstrapAdmins(ctx context.Context) {
	if len(a.Config.Auth.AdminEmails) == 0 {
		return
	}
	n, err := a.Directory.BootstrapAdmins(ctx)
	if err != nil {
		log.Logger.Error("bootstrap admins", zap.Error(err))
		return
	}
	total, _ := a.Repo.CountAdmins(ctx)
	log.Logger.Info("admin bootstrap done", zap.Int("granted", n), zap.Int64("admins", total))
}
