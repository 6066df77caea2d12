// 导入演示用的花名册与题库
//
// 用法: go run scripts/seed.go -config configs -file scripts/seed.yaml
//
// 用户按用户名插入或更新；题目每次运行都会新建。

package main

import (
	"classwork_backend/internal/config"
	"classwork_backend/internal/model"
	"classwork_backend/internal/repository"
	"classwork_backend/pkg/database"
	"classwork_backend/pkg/logger"
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type seedUser struct {
	Username  string `yaml:"username"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Role      string `yaml:"role"`
	Group     string `yaml:"group"`
}

type seedQuestion struct {
	Format        string        `yaml:"format"`
	Category      string        `yaml:"category"`
	Difficulty    string        `yaml:"difficulty"`
	Points        float64       `yaml:"points"`
	CorrectAnswer *string       `yaml:"correct_answer"`
	OpenAnswer    *string       `yaml:"numeric_answer"`
	CorrectMulti  *model.Multi3 `yaml:"correct_multi"`
}

type seedFile struct {
	Users     []seedUser     `yaml:"users"`
	Questions []seedQuestion `yaml:"questions"`
}

func main() {
	configDir := flag.String("config", "configs", "配置目录")
	file := flag.String("file", "scripts/seed.yaml", "种子数据文件")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	logger.InitLogger(cfg)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("无法读取种子文件: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("解析种子文件失败: %v", err)
	}

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	for _, u := range seed.Users {
		role := model.UserRole(u.Role)
		if role == "" {
			role = model.Student
		}
		err := users.Upsert(ctx, &model.User{
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      role,
			Group:     u.Group,
		})
		if err != nil {
			logger.Log.Error("seed user failed", zap.String("username", u.Username), zap.Error(err))
		}
	}

	questions := repository.NewQuestionRepository(db)
	for i, sq := range seed.Questions {
		q := &model.Question{
			Format:        model.QuestionFormat(sq.Format),
			Category:      model.QuestionCategory(sq.Category),
			Difficulty:    model.Difficulty(sq.Difficulty),
			Points:        sq.Points,
			CorrectAnswer: sq.CorrectAnswer,
			OpenAnswer:    sq.OpenAnswer,
			CorrectMulti:  sq.CorrectMulti,
		}
		if q.Points <= 0 {
			q.Points = 1
		}
		if !q.Format.Valid() {
			logger.Log.Warn("skip question with unknown format", zap.Int("index", i), zap.String("format", sq.Format))
			continue
		}
		if err := questions.Create(ctx, q); err != nil {
			logger.Log.Error("seed question failed", zap.Int("index", i), zap.Error(err))
		}
	}

	log.Printf("完成！用户 %d 个，题目 %d 道", len(seed.Users), len(seed.Questions))
}
