package main

import (
	"log"
	"net/http"

	"ecommerce-backend/config"
	"ecommerce-backend/consumers"
	"ecommerce-backend/controllers"
	"ecommerce-backend/database"
	"ecommerce-backend/middlewares"
	"ecommerce-backend/rabbitmq"
	"ecommerce-backend/services"
	"ecommerce-backend/stores"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig()

	// 初始化数据库
	if err := database.InitDB(cfg); err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	defer database.CloseDB()

	if err := database.InitSchema(); err != nil {
		log.Fatalf("Schema initialization failed: %v", err)
	}

	// 初始化RabbitMQ
	rmq, err := rabbitmq.NewRabbitMQ(cfg)
	if err != nil {
		log.Fatalf("RabbitMQ initialization failed: %v", err)
	}
	defer rmq.Close()

	if err := rmq.SetupQueues(); err != nil {
		log.Fatalf("Failed to setup RabbitMQ queues: %v", err)
	}

	store := stores.NewStore(database.DB)
	orderService := services.NewOrderService(store, rmq, cfg.PaymentCheckWait)
	dealService := services.NewDealService(store)

	// 启动消息消费者
	consumers.StartOrderConsumer(rmq.Channel, cfg, orderService)

	// 启动过期活动清理任务
	sweeper := services.NewDealSweeper(dealService, cfg.DealSweepEvery)
	sweeper.OnSweep(middlewares.RecordDealSweep)
	sweeper.Start()
	defer sweeper.Stop()

	orderController := controllers.NewOrderController(orderService)
	dealController := controllers.NewDealController(dealService)
	cartController := controllers.NewCartController(store)

	// 创建Gin路由
	r := gin.Default()

	// 应用Prometheus中间件
	r.Use(middlewares.PrometheusMiddleware())

	// 暴露Prometheus指标端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查端点
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 需要认证的路由组
	authGroup := r.Group("/api")
	authGroup.Use(middlewares.AuthMiddleware(cfg))
	{
		authGroup.POST("/order", orderController.CreateOrder)
		authGroup.GET("/orders", orderController.GetUserOrders)
		authGroup.GET("/orders/:orderId", orderController.GetOrderDetails)
		authGroup.PUT("/order/:orderId/status", orderController.UpdateOrderStatus)
		authGroup.DELETE("/order/:orderId", orderController.DeleteOrder)

		authGroup.POST("/cart", cartController.AddToCart)
		authGroup.GET("/cart", cartController.GetCart)
		authGroup.DELETE("/cart/:productId", cartController.RemoveFromCart)

		authGroup.POST("/deals", dealController.CreateDeal)
		authGroup.GET("/deals", dealController.GetDealsOfTheDay)
		authGroup.GET("/deals/:id", dealController.GetDealByID)
		authGroup.PUT("/deals/:id", dealController.UpdateDeal)
		authGroup.DELETE("/deals/:id", dealController.DeleteDeal)
	}

	// 死信队列处理端点
	r.POST("/dead-letter", controllers.HandleDeadLetter)

	// 启动服务器
	port := ":8080"
	log.Printf("Ecommerce backend starting on port %s", port)
	if err := r.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
