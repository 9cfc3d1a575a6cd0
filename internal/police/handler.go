package police

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MessageRequestBody 定义了消息接入请求的JSON结构
type MessageRequestBody struct {
	MemberID  string   `json:"member_id" binding:"required"`
	ChannelID string   `json:"channel_id" binding:"required"`
	RoleIDs   []string `json:"role_ids"`
}

// PostMessage 把一条入站消息交给频率监测
func PostMessage(c *gin.Context) {
	guildID := c.Param("guild_id")

	var body MessageRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := HandleMessage(guildID, body.MemberID, body.ChannelID, body.RoleIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理消息失败"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteGuild 在离开公会时丢弃它的监测状态
func DeleteGuild(c *gin.Context) {
	guildID := c.Param("guild_id")
	TeardownGuild(guildID)
	c.JSON(http.StatusOK, gin.H{"guild_id": guildID, "removed": true})
}
