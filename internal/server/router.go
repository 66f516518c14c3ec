// Package server assembles the HTTP surface: one gin engine with every
// feature module mounted under /api/v1.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	invH "github.com/campops/procurement-service/internal/inventory/handler"
	notifH "github.com/campops/procurement-service/internal/notification/handler"
	orderH "github.com/campops/procurement-service/internal/order/handler"
	receiptH "github.com/campops/procurement-service/internal/receipt/handler"
)

// Handlers carries the wired feature handlers into route setup.
type Handlers struct {
	Orders        *orderH.OrderHandler
	Inventory     *invH.InventoryHandler
	Receipts      *receiptH.ReceiptHandler
	Notifications *notifH.NotificationHandler
}

func NewRouter(appEnv string, h Handlers) *gin.Engine {
	if appEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := router.Group("/api/v1")
	{
		orders := apiV1.Group("/orders")
		{
			orders.POST("", h.Orders.Create)
			orders.POST("/auto-generate", h.Orders.AutoGenerate)
			orders.POST("/seed", h.Orders.Seed)
			orders.GET("", h.Orders.List)
			orders.GET("/pending-review", h.Orders.PendingReview)
			orders.GET("/ready-to-order", h.Orders.ReadyToOrder)
			orders.GET("/my-orders", h.Orders.MyOrders)
			orders.GET("/shortages", h.Orders.Shortages)
			orders.POST("/shortages/dismiss", h.Orders.DismissShortages)
			orders.GET("/flagged-items", h.Orders.FlaggedItems)
			orders.GET("/supplier-purchase-list", h.Orders.SupplierPurchaseList)
			orders.GET("/summary/by-property", h.Orders.SummaryByProperty)

			orders.GET("/:id", h.Orders.Get)
			orders.PUT("/:id", h.Orders.Update)
			orders.DELETE("/:id", h.Orders.Delete)
			orders.POST("/:id/items", h.Orders.AddItem)
			orders.PUT("/:id/items/:itemId", h.Orders.UpdateItem)
			orders.DELETE("/:id/items/:itemId", h.Orders.RemoveItem)
			orders.POST("/:id/submit", h.Orders.Submit)
			orders.POST("/:id/review", h.Orders.Review)
			orders.POST("/:id/resubmit", h.Orders.Resubmit)
			orders.POST("/:id/mark-ordered", h.Orders.MarkOrdered)
			orders.POST("/:id/unmark-ordered", h.Orders.UnmarkOrdered)
			orders.POST("/:id/withdraw", h.Orders.Withdraw)
			orders.POST("/:id/receive", h.Orders.Receive)
		}

		inventory := apiV1.Group("/inventory")
		{
			inventory.POST("/items", h.Inventory.CreateItem)
			inventory.GET("/items", h.Inventory.ListItems)
			inventory.GET("/items/categories", h.Inventory.ListCategories)
			inventory.GET("/items/:id", h.Inventory.GetItem)
			inventory.PUT("/items/:id", h.Inventory.UpdateItem)
			inventory.DELETE("/items/:id", h.Inventory.DeactivateItem)
			inventory.POST("/match-item", h.Inventory.MatchItem)
			inventory.GET("/search", h.Inventory.SearchItems)
			inventory.POST("/counts", h.Inventory.CreateCount)
			inventory.GET("/counts", h.Inventory.ListCounts)
			inventory.GET("/counts/:id", h.Inventory.GetCount)
			inventory.POST("/counts/:id/finalize", h.Inventory.FinalizeCount)
			inventory.GET("/printable/:propertyID", h.Inventory.PrintableList)
		}

		receipts := apiV1.Group("/receipts")
		{
			receipts.POST("", h.Receipts.Create)
			receipts.POST("/reconcile", h.Receipts.Reconcile)
			receipts.GET("", h.Receipts.List)
			receipts.GET("/pending-verification", h.Receipts.PendingVerification)
			receipts.GET("/financial-dashboard", h.Receipts.Dashboard)
			// Same search the inventory module exposes, mounted where the
			// receipt review screen looks for it.
			receipts.GET("/search-inventory", h.Inventory.SearchItems)
			receipts.POST("/add-to-inventory", h.Receipts.AddToInventory)
			receipts.GET("/aliases/:propertyId", h.Receipts.ListAliases)
			receipts.DELETE("/aliases/:aliasId", h.Receipts.DeactivateAlias)

			receipts.GET("/:id", h.Receipts.Get)
			receipts.PUT("/:id", h.Receipts.Update)
			receipts.DELETE("/:id", h.Receipts.Delete)
			receipts.POST("/:id/verify", h.Receipts.Verify)
			receipts.POST("/:id/line-items/:lineId/match", h.Receipts.MatchLine)
			receipts.PUT("/:id/line-items/:lineId", h.Receipts.UpdateLine)
			receipts.DELETE("/:id/line-items/:lineId", h.Receipts.DeleteLine)
		}

		notifications := apiV1.Group("/notifications")
		{
			notifications.GET("", h.Notifications.ListMine)
			notifications.GET("/unread-count", h.Notifications.UnreadCount)
			notifications.POST("/mark-read", h.Notifications.MarkRead)
			notifications.POST("/mark-all-read", h.Notifications.MarkAllRead)
			notifications.DELETE("/:id", h.Notifications.Delete)
		}
	}

	return router
}
