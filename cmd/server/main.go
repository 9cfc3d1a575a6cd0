package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/api"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/ledger"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/notification"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/backup"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/config"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/health"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/shutdown"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/startup"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/police"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/lifecycle"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}

	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 阻塞式执行一次启动后健康检查（必要时触发缓存重建）
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 异步启动后台的持续健康检查器
	go health.StartRedisHealthCheck()

	// 通知扇出挂到事实日志上
	notification.NewDispatcher(nil, nil).Register()

	// 两阶段停机的生命周期管理器
	gracefulManager := lifecycle.NewManager()
	forcefulManager := lifecycle.NewManager()

	// 启动账本缓存处理器
	processorGraceful, err := gracefulManager.NewServiceHandle("ledger-processor")
	if err != nil {
		panic(fmt.Sprintf("创建处理器生命周期句柄失败: %v", err))
	}
	processorForceful, err := forcefulManager.NewServiceHandle("ledger-processor")
	if err != nil {
		panic(fmt.Sprintf("创建处理器生命周期句柄失败: %v", err))
	}
	if err := ledger.StartLedgerProcessor(processorGraceful, processorForceful); err != nil {
		panic(fmt.Sprintf("启动账本处理器失败: %v", err))
	}

	// 启动频率监测清理任务
	janitorHandle, err := gracefulManager.NewServiceHandle("police-janitor")
	if err != nil {
		panic(fmt.Sprintf("创建清理任务生命周期句柄失败: %v", err))
	}
	if err := police.StartJanitor(janitorHandle); err != nil {
		panic(fmt.Sprintf("启动频率监测清理任务失败: %v", err))
	}

	// 启动检查点快照调度器
	backupHandle, err := gracefulManager.NewServiceHandle("snapshot-scheduler")
	if err != nil {
		panic(fmt.Sprintf("创建快照调度器生命周期句柄失败: %v", err))
	}
	if err := backup.StartBackupScheduler(backupHandle); err != nil {
		panic(fmt.Sprintf("启动快照调度器失败: %v", err))
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 阻塞等待停机信号，并编排两阶段停机
	coordinator := shutdown.NewCoordinator(gracefulManager, forcefulManager)
	coordinator.ListenForSignalsAndShutdown(server)
}
