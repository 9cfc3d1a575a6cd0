package ledger

import (
	"net/http"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/settings"
	"github.com/gin-gonic/gin"
)

// seasonFromQuery 解析 ?season_start=&season_end= 参数，缺省为全时段。
func seasonFromQuery(c *gin.Context) (Season, bool) {
	season, err := ParseSeason(c.Query("season_start"), c.Query("season_end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return Season{}, false
	}
	return season, true
}

// GetBalance 查询一个成员的当前余额
func GetBalance(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	season, ok := seasonFromQuery(c)
	if !ok {
		return
	}

	balance, err := Balance(guildID, memberID, season)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询余额失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": memberID, "balance": balance})
}

// GetPrestige 查询一个成员到达过的余额峰值
func GetPrestige(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	season, ok := seasonFromQuery(c)
	if !ok {
		return
	}

	prestige, err := Prestige(guildID, memberID, season)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询威望失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": memberID, "prestige": prestige})
}

// GetRankings 查询指定类别的排行榜
func GetRankings(c *gin.Context) {
	guildID := c.Param("guild_id")
	kind := RankingKind(c.Param("kind"))

	season, ok := seasonFromQuery(c)
	if !ok {
		return
	}

	entries, err := Rankings(guildID, kind, season)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "entries": entries})
}

// BeansRequestBody 定义了货币事实写入请求的JSON结构
type BeansRequestBody struct {
	MemberID string            `json:"member_id"`
	Reason   event.BeansReason `json:"reason" binding:"required"`
	Value    int64             `json:"value"`

	// 转账时使用
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Amount int64  `json:"amount"`
}

// PostBeans 写入一条货币事实（发放、转账、修正、赌局结算）
func PostBeans(c *gin.Context) {
	guildID := c.Param("guild_id")

	var body BeansRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	if body.Reason == event.BeansReasonTransfer {
		if body.FromID == "" || body.ToID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "转账需要from_id和to_id"})
			return
		}
		if err := TransferBeans(guildID, body.FromID, body.ToID, body.Amount); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transferred": body.Amount})
		return
	}

	if body.MemberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少member_id"})
		return
	}

	value := body.Value
	if body.Reason == event.BeansReasonDaily && value == 0 {
		amount, err := settings.GetInt(guildID, settings.ModuleBeans, settings.KeyBeansDailyAmount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "读取每日发放设置失败"})
			return
		}
		value = amount
	}

	balance, err := GrantBeans(guildID, body.MemberID, body.Reason, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"member_id": body.MemberID, "balance": balance})
}
