// Package modeltest provides the entity models shared by the query pipeline tests.
package modeltest

import (
	"sync"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/model/schema"
)

// NorthwindSchema is a trimmed Northwind model with an inheritance
// hierarchy, filtered entities, temporal entities, JSON columns and
// primitive collections.
const NorthwindSchema = `
enum Rank {
  Private
  Corporal
  Sergeant
  General = 10
}

enum Status {
  Open
  Closed = 3
}

type Address {
  Street  String
  City    String?
  Country String?
}

type Leaf {
  SomethingSomething String
  Status             Status
  Date               DateTime?
}

type Branch {
  Name     String
  Fraction Decimal? @db.Decimal(18, 2)
  Leaf     Leaf?    @map("OwnedLeaf")
  Leaves   Leaf[]
}

model Customer {
  CustomerID  String  @id @db.NChar(5)
  CompanyName String  @db.NVarChar(40)
  ContactName String? @db.NVarChar(30)
  City        String? @db.NVarChar(15)
  Country     String? @db.NVarChar(15)
  Orders      Order[]

  @@map("Customers")
}

model Order {
  OrderID      Int       @id
  CustomerID   String?   @db.NChar(5)
  EmployeeID   Int?
  OrderDate    DateTime?
  Freight      Decimal?  @db.Decimal(19, 4)
  Customer     Customer? @relation(fields: [CustomerID], references: [CustomerID])
  Employee     Employee? @relation(fields: [EmployeeID], references: [EmployeeID])
  OrderDetails OrderDetail[]

  @@map("Orders")
}

model OrderDetail {
  OrderID   Int
  ProductID Int
  UnitPrice Decimal @db.Decimal(19, 4)
  Quantity  Short
  Order     Order   @relation(fields: [OrderID], references: [OrderID])
  Product   Product @relation(fields: [ProductID], references: [ProductID])

  @@id([OrderID, ProductID])
  @@map("Order Details")
}

model Product {
  ProductID    Int    @id
  ProductName  String @db.NVarChar(40)
  UnitsInStock Short?
  Discontinued Boolean
  OrderDetails OrderDetail[]

  @@map("Products")
}

model Employee {
  EmployeeID Int     @id
  FirstName  String  @db.NVarChar(10)
  City       String? @db.NVarChar(15)
  ReportsTo  Int?
  Manager    Employee? @relation(fields: [ReportsTo], references: [EmployeeID])
  Reports    Employee[]
  Orders     Order[]

  @@map("Employees")
}

model Tenant {
  Id       Int    @id
  Name     String
  TenantId Int
  Members  Member[]

  @@map("Tenants")
  @@filter("t => t.TenantId == ctx.TenantId")
}

model Member {
  Id       Int    @id
  Name     String
  TenantId Int
  ParentId Int?
  OwnerId  Int
  Owner    Tenant @relation(fields: [OwnerId], references: [Id])

  @@map("Members")
  @@filter("m => m.TenantId == ctx.TenantId && (m.ParentId == null || Members.Any(p => p.Id == m.ParentId))")
}

model Gear {
  Nickname String @id
  FullName String
  Rank     Rank
  SquadId  Int
  Squad    Squad  @relation(fields: [SquadId], references: [Id])

  @@map("Gears")
  @@temporal(start: "PeriodStart", end: "PeriodEnd")
}

model Squad {
  Id      Int    @id
  Name    String
  Members Gear[]
  Address Address

  @@map("Squads")
  @@temporal
}

model Mission {
  Id       Int    @id
  CodeName String

  @@map("Missions")
}

model Animal {
  Id    Int    @id
  Name  String
  Group String?

  @@abstract
  @@map("Animals")
  @@discriminator(column: "Discriminator")
}

model Bird extends Animal {
  CanFly Boolean
}

model Kiwi extends Bird {
  FoundOn String?
}

model Eagle extends Bird {
  Wingspan Int
}

model Fish extends Animal {
  Fins Int
}

model JsonEntity {
  Id         Int      @id
  Name       String?
  Reference  Branch?  @json("OwnedReferenceRoot")
  Collection Branch[] @json("OwnedCollectionRoot")

  @@map("JsonEntitiesBasic")
}

model Collections {
  Id      Int       @id
  Number  Int
  Text    String?   @db.NVarChar(20)
  Code    String?   @db.VarChar(10)
  Ints    Int[]
  Strings String[]

  @@map("PrimitiveCollectionsEntity")
}
`

var (
	once      sync.Once
	northwind *model.Model
)

// Northwind returns the shared model. It is built once and must not be mutated.
func Northwind() *model.Model {
	once.Do(func() {
		northwind = schema.MustLoad("northwind.relq", NorthwindSchema)
	})
	return northwind
}

// Entity returns the named entity of the shared model or panics.
func Entity(name string) *model.EntityType {
	e, err := Northwind().Entity(name)
	if err != nil {
		panic(err)
	}
	return e
}
