package settings

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetModuleSettings 返回一个公会在某模块下的全部生效值
func GetModuleSettings(c *gin.Context) {
	guildID := c.Param("guild_id")
	module := c.Param("module")

	values, err := ModuleValues(guildID, module)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取模块设置失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": module, "values": values})
}

// PutModuleSettings 批量覆盖一个公会在某模块下的设置
func PutModuleSettings(c *gin.Context) {
	guildID := c.Param("guild_id")
	module := c.Param("module")

	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	for key, value := range body {
		if err := Set(guildID, module, key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入设置失败"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"module": module, "updated": len(body)})
}
