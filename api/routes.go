package api

import (
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/interaction"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/jail"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/ledger"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/police"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/gin-gonic/gin"
)

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		// 所有业务路由都以公会为作用域 /api/guilds/:guild_id
		guild := api.Group("/guilds/:guild_id")
		{
			// 账本查询
			guild.GET("/members/:member_id/balance", ledger.GetBalance)
			guild.GET("/members/:member_id/prestige", ledger.GetPrestige)
			guild.GET("/rankings/:kind", ledger.GetRankings)
			guild.POST("/beans", ledger.PostBeans)

			// 监禁
			guild.GET("/jail/:member_id", jail.GetStatus)
			guild.POST("/jail", jail.PostJail)
			guild.POST("/jail/:member_id/release", jail.PostRelease)
			guild.POST("/jail/:member_id/delta", jail.PostDelta)

			// 玩家动作与修正道具
			guild.POST("/interactions", interaction.PostInteraction)
			guild.GET("/members/:member_id/modifiers", interaction.GetModifiers)
			guild.POST("/modifiers", interaction.PostModifier)

			// 频率监测
			guild.POST("/messages", police.PostMessage)
			guild.DELETE("/police", police.DeleteGuild)

			// 设置
			guild.GET("/settings/:module", settings.GetModuleSettings)
			guild.PUT("/settings/:module", settings.PutModuleSettings)
		}
	}
}
