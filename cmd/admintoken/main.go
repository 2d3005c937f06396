// admintoken 为管理接口签发 JWT，密钥与签发方读取自处理器的配置文件。
package main

import (
	"flag"
	"fmt"
	"log"

	"MarketFlow/internal/config"
	"MarketFlow/pkg/util/myjwt"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	subject := flag.String("subject", "ops", "令牌主体")
	role := flag.String("role", myjwt.RoleAdmin, "令牌角色")
	flag.Parse()

	conf, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	signer, err := myjwt.NewSigner(conf.JwtConfig.Key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
	if err != nil {
		log.Fatalf("创建签名器失败: %v", err)
	}
	token, err := signer.GenerateToken(*subject, *role)
	if err != nil {
		log.Fatalf("签发令牌失败: %v", err)
	}
	fmt.Println(token)
}
