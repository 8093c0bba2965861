package routes

import (
	"net/http"
	"strings"

	"projector_reservation/app"
	"projector_reservation/controllers"
	"projector_reservation/metrics"
	"projector_reservation/services"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	authCtl := controllers.NewAuthController(s)
	uc := controllers.NewUserController(s)
	rc := controllers.NewReservationController(s)
	pc := controllers.NewProjectorController(s)
	nc := controllers.NewNotificationController(s)

	authMW := app.AuthRequired(a.Tokens(), a.AppSessions(), a.Repo)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, a.Config.Auth.SeenThrottle.Duration)
	can := func(c services.Capability) gin.HandlerFunc { return app.RequireCapability(a.Gate, c) }

	r.GET("/healthz", func(c *app.Ctx) {
		if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "db": "down"})
			return
		}
		if err := a.RDB.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, app.H{"ok": false, "redis": "down"})
			return
		}
		c.JSON(http.StatusOK, app.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if strings.HasPrefix(a.Config.Storage.BaseURL, "/") {
		r.Static(a.Config.Storage.BaseURL, a.Config.Storage.Path)
	}

	// ------------------------------
	// Sign-in
	// ------------------------------
	auth := r.Group("/auth")
	{
		auth.POST("/google", authCtl.GoogleSignIn)
	}
	authed := auth.Group("", authMW, seenMW)
	{
		authed.GET("/whoami", authCtl.WhoAmI)
		authed.POST("/logout", authCtl.Logout)
		authed.POST("/logout-all", authCtl.LogoutAll)
	}

	wa := r.Group("/webauthn")
	{
		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// Users
	// ------------------------------
	me := r.Group("/api/users/me", authMW, seenMW)
	{
		me.PUT("/profile", uc.CompleteProfile)
		me.POST("/document", uc.UploadDocument)
	}
	users := r.Group("/api/users", authMW, seenMW)
	{
		users.GET("", can(services.CapViewUsers), uc.ListUsers)
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id/admin", can(services.CapManageUsers), uc.SetAdmin)
		users.DELETE("/:id/sessions", can(services.CapManageUsers), uc.RevokeSessions)
	}

	// ------------------------------
	// Reservations
	// ------------------------------
	res := r.Group("/api/reservations", authMW, seenMW)
	{
		res.POST("", rc.Submit)
		res.GET("", rc.List)
		res.GET("/:id", rc.Get)
		res.POST("/:id/document", rc.AttachDocument)

		review := can(services.CapReviewReservations)
		res.POST("/:id/approve", review, rc.Approve)
		res.POST("/:id/reject", review, rc.Reject)
		res.POST("/:id/return", review, rc.Return)
	}

	// ------------------------------
	// Projectors
	// ------------------------------
	projectors := r.Group("/api/projectors", authMW, seenMW)
	{
		projectors.GET("/available", pc.ListAvailable)
	}
	manage := projectors.Group("", can(services.CapManageProjectors))
	{
		manage.POST("", pc.Create)
		manage.GET("", pc.List)
		manage.PUT("/:id", pc.Update)
		manage.DELETE("/:id", pc.Delete)
		manage.GET("/:id/history", pc.History)
	}

	// ------------------------------
	// Notifications
	// ------------------------------
	notes := r.Group("/api/notifications", authMW, seenMW)
	{
		notes.GET("", nc.List)
		notes.GET("/unread-count", nc.UnreadCount)
		notes.POST("/read-all", nc.MarkAllRead)
		notes.POST("/:id/read", nc.MarkRead)
		notes.POST("", can(services.CapSendNotifications), nc.Send)
	}
}
