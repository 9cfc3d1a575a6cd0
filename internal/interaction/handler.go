package interaction

import (
	"net/http"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/gin-gonic/gin"
)

// InteractionRequestBody 定义了动作请求的JSON结构
type InteractionRequestBody struct {
	Kind     event.InteractionKind `json:"kind" binding:"required"`
	ActorID  string                `json:"actor_id" binding:"required"`
	TargetID string                `json:"target_id" binding:"required"`
}

// PostInteraction 执行一次玩家对玩家的动作
func PostInteraction(c *gin.Context) {
	guildID := c.Param("guild_id")

	var body InteractionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := Perform(guildID, body.Kind, body.ActorID, body.TargetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理动作失败"})
		return
	}
	if !result.Performed {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ModifierRequestBody 定义了发放修正道具请求的JSON结构
type ModifierRequestBody struct {
	OwnerID   string       `json:"owner_id" binding:"required"`
	Kind      ModifierKind `json:"kind" binding:"required"`
	Value     float64      `json:"value"`
	Permanent bool         `json:"permanent"`
}

// PostModifier 给成员发放一个修正道具（商店结算的落点）
func PostModifier(c *gin.Context) {
	guildID := c.Param("guild_id")

	var body ModifierRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	m, err := GrantModifier(guildID, body.OwnerID, body.Kind, body.Value, body.Permanent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "发放修正道具失败"})
		return
	}

	// 道具持有量变动也进事实日志
	if _, err := event.Append(event.NewInventoryEvent(guildID, body.OwnerID, string(body.Kind), 1)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "写入道具事实失败"})
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetModifiers 查询成员当前未消耗的修正道具
func GetModifiers(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	mods, err := activeModifiers(guildID, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取修正道具失败"})
		return
	}
	if mods == nil {
		mods = []Modifier{}
	}
	c.JSON(http.StatusOK, gin.H{"member_id": memberID, "modifiers": mods})
}
