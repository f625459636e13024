package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, source Source) {
	// Page.
	router.GET("/", handleIndex(source))

	// JSON API.
	router.GET("/api/badge", handleBadge(source))
	router.GET("/api/conversations", handleConversations(source))
	router.GET("/api/notifications", handleNotifications(source))

	// SSE stream of badge changes.
	router.GET("/api/events", handleSSE(source))
}

func handleIndex(source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, notifications := source.Counts()
		c.HTML(http.StatusOK, "index.html", gin.H{
			"messages":      messages,
			"notifications": notifications,
			"conversations": source.Conversations(),
		})
	}
}

func handleBadge(source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		messages, notifications := source.Counts()
		c.JSON(http.StatusOK, gin.H{
			"messages":      messages,
			"notifications": notifications,
		})
	}
}

func handleConversations(source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"conversations": source.Conversations()})
	}
}

func handleNotifications(source Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"notifications": source.Notifications()})
	}
}
