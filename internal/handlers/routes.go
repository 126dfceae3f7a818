package handlers

import "github.com/gin-gonic/gin"

// Routes bundles the handlers mounted under /api.
type Routes struct {
	Auth        *AuthHandler
	Groups      *GroupHandler
	Messages    *MessageHandler
	Suggestions *SuggestionHandler

	// RequireAuth resolves the bearer token; Limit throttles model-backed calls.
	RequireAuth gin.HandlerFunc
	Limit       gin.HandlerFunc
}

// Register mounts every route on api.
func (r Routes) Register(api gin.IRouter) {
	limit := r.Limit
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}

	api.POST("/register", r.Auth.Register)
	api.POST("/login", r.Auth.Login)
	api.GET("/students", r.Auth.ListStudents)
	api.GET("/groups", r.Groups.ListGroups)
	api.GET("/groups/:id", r.Groups.GetGroup)
	api.GET("/groups/:id/messages", r.Messages.ListMessages)

	authed := api.Group("", r.RequireAuth)
	authed.POST("/logout", r.Auth.Logout)
	authed.PUT("/students/:username", r.Auth.UpdateStudent)

	authed.POST("/groups", r.Groups.CreateGroup)
	authed.PUT("/groups/:id", r.Groups.UpdateGroup)
	authed.DELETE("/groups/:id", r.Groups.DeleteGroup)
	authed.POST("/groups/:id/join", r.Groups.JoinGroup)
	authed.POST("/groups/:id/leave", r.Groups.LeaveGroup)

	authed.POST("/groups/:id/messages", r.Messages.PostMessage)
	authed.POST("/groups/:id/messages/:messageId/reactions", r.Messages.ToggleReaction)
	authed.POST("/groups/:id/assistant", limit, r.Messages.AskAssistant)

	authed.POST("/suggestions", limit, r.Suggestions.Suggest)
}
